// Package docutray is the official Go client for the DocuTray document
// processing API. It covers document conversion, document type
// identification, pipeline step execution and knowledge base operations.
//
// Construct a client with an API key and use the resource services hanging
// off it:
//
//	client, err := docutray.New(docutray.Config{APIKey: os.Getenv("DOCUTRAY_API_KEY")})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Convert.Run(ctx, docutray.ConvertParams{
//		DocumentTypeCode: "invoice",
//		File:             docutray.FileInput{Path: "invoice.pdf"},
//	})
//
// All calls take a context.Context and honor its cancellation across
// retries and polling waits. Failed requests return a *Error that wraps one
// of the package sentinels, so callers classify failures with errors.Is:
//
//	if errors.Is(err, docutray.ErrRateLimited) {
//		// back off
//	}
package docutray
