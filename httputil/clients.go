package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	API   *http.Client // provider API calls
	Media *http.Client // thumbnail downloads, longer timeout
}

func NewClients() *Clients {
	return &Clients{
		API:   &http.Client{Timeout: 30 * time.Second},
		Media: &http.Client{Timeout: 60 * time.Second},
	}
}
