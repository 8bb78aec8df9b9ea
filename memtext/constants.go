package memtext

// Wire-level constants for the memcached ASCII protocol. There is no
// binary header to speak of here: every request and response is a
// CRLF-terminated line, optionally followed by a fixed-length byte block.
const (
	crlf = "\r\n"

	// endMarker and storedMarker are compared against lines already
	// stripped of their trailing CRLF by readLine.
	endMarker    = "END"
	storedMarker = "STORED"

	verbGet    = "get"
	verbSet    = "set"
	verbAdd    = "add"
	verbDelete = "delete"
	verbStats  = "stats"
)

// maxBucketTries bounds the perturbation walk in server selection (§4.3).
const maxBucketTries = 20
