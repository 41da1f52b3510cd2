package docutray

// Version is the SDK release version. It is reported to the API in the
// User-Agent header of every request.
const Version = "0.3.0"

const userAgent = "docutray-go/" + Version
