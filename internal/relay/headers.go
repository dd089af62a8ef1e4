package relay

import (
	"encoding/base64"
	"net/http"
	"net/textproto"
	"strings"
)

// hopByHopHeaders are the headers that only make sense for a single hop.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RemoveHopByHopHeaders removes from header the hop-by-hop headers as well
// as any header listed by the Connection header.
func RemoveHopByHopHeaders(header http.Header) {
	for _, value := range header.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			if name = textproto.TrimString(name); name != "" {
				header.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		header.Del(name)
	}
}

// ProxyAuthorization returns the value of the Proxy-Authorization header
// carrying the "<username>:<password>" credentials with the basic scheme.
func ProxyAuthorization(credentials string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}
