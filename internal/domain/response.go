package domain

// Response is what a fetcher hands back when the request completed at the transport level.
type Response struct {
	URL    string
	Status int
	Body   []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}
