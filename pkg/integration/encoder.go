package integration

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gatemock/gatemock/pkg/config"
)

// requestTimeLayout renders requestContext.requestTime: zero-padded day,
// English three-letter month, and a literal +0000 offset (the encoder always
// formats in UTC).
const requestTimeLayout = "02/Jan/2006:15:04:05 +0000"

// messageDirection is the only direction the emulator produces: every event
// flows from the client into the backend.
const messageDirection = "IN"

// Encoder shapes events into one of the two supported wire formats.
type Encoder struct {
	stage  string
	apiID  string
	domain string
	now    func() time.Time
}

// NewEncoder creates an encoder bound to the server's stage identity.
func NewEncoder(cfg *config.Config) *Encoder {
	return &Encoder{
		stage:  cfg.Stage,
		apiID:  cfg.APIID,
		domain: cfg.PublicDomain(),
		now:    time.Now,
	}
}

// proxyPayload is the lambda-proxy envelope. Body and QueryStringParameters
// are pointers/nilable so that CONNECT and DISCONNECT carry the JSON literal
// null rather than an empty string or object.
type proxyPayload struct {
	RequestContext        requestContext      `json:"requestContext"`
	Headers               map[string]string   `json:"headers"`
	MultiValueHeaders     map[string][]string `json:"multiValueHeaders"`
	QueryStringParameters map[string]string   `json:"queryStringParameters"`
	Body                  *string             `json:"body"`
	IsBase64Encoded       bool                `json:"isBase64Encoded"`
}

type requestContext struct {
	RouteKey             string   `json:"routeKey"`
	EventType            string   `json:"eventType"`
	ExtendedRequestID    string   `json:"extendedRequestId"`
	RequestID            string   `json:"requestId"`
	RequestTime          string   `json:"requestTime"`
	MessageDirection     string   `json:"messageDirection"`
	Stage                string   `json:"stage"`
	ConnectedAt          int64    `json:"connectedAt"`
	RequestTimeEpoch     int64    `json:"requestTimeEpoch"`
	Identity             identity `json:"identity"`
	DomainName           string   `json:"domainName"`
	ConnectionID         string   `json:"connectionId"`
	APIID                string   `json:"apiId"`
	MessageID            string   `json:"messageId,omitempty"`
	DisconnectStatusCode *int     `json:"disconnectStatusCode,omitempty"`
	DisconnectReason     *string  `json:"disconnectReason,omitempty"`
}

type identity struct {
	SourceIP  string `json:"sourceIp"`
	UserAgent string `json:"userAgent,omitempty"`
}

// ProxyBody builds the lambda-proxy JSON body for an event.
func (e *Encoder) ProxyBody(ev Event) ([]byte, error) {
	eventTime := e.now().UTC()
	requestID := uuid.NewString()

	rc := requestContext{
		RouteKey:          ev.RouteKey,
		EventType:         string(ev.Type),
		ExtendedRequestID: requestID,
		RequestID:         requestID,
		RequestTime:       eventTime.Format(requestTimeLayout),
		MessageDirection:  messageDirection,
		Stage:             e.stage,
		ConnectedAt:       ev.Session.ConnectedAt.UnixMilli(),
		RequestTimeEpoch:  eventTime.UnixMilli(),
		Identity: identity{
			SourceIP:  ev.Session.SourceIP,
			UserAgent: ev.Session.UserAgent,
		},
		DomainName:   e.domain,
		ConnectionID: ev.Session.ConnectionID,
		APIID:        e.apiID,
	}

	payload := proxyPayload{
		Headers:           ev.Session.Headers,
		MultiValueHeaders: multiValueHeaders(ev.Session.Headers),
		// nil marshals to the literal null; the field is only an object when
		// the connect URL actually carried parameters.
		QueryStringParameters: ev.Session.Query,
	}

	switch ev.Type {
	case EventMessage:
		rc.MessageID = NewSocketID()
		body := ev.Body
		payload.Body = &body
	case EventDisconnect:
		code := 1005 // no status received
		reason := ""
		if ev.Disconnect != nil {
			code = ev.Disconnect.StatusCode
			reason = ev.Disconnect.Reason
		}
		rc.DisconnectStatusCode = &code
		rc.DisconnectReason = &reason
	}

	payload.RequestContext = rc
	return json.Marshal(payload)
}

// HeaderRequest is the http-headers rendition of an event: raw body, context
// in headers, connect-time query parameters forwarded as the URL query.
// Header keys keep their exact spelling (connectionId, x-event-type, ...);
// the dispatcher writes them to the request without canonicalization.
type HeaderRequest struct {
	Body        []byte
	Header      map[string]string
	Query       url.Values
	ContentType string
}

// HeaderBody builds the http-headers rendition of an event. The payload is
// the raw frame text (empty for connect/disconnect); all connect-time headers
// travel through unchanged.
func (e *Encoder) HeaderBody(ev Event) HeaderRequest {
	header := make(map[string]string, len(ev.Session.Headers)+5)
	for name, value := range ev.Session.Headers {
		if name == "content-type" {
			// The outbound Content-Type is dictated by the frame body, not
			// by whatever the client sent during the upgrade.
			continue
		}
		header[name] = value
	}
	header["connectionId"] = ev.Session.ConnectionID
	header["x-event-type"] = string(ev.Type)
	header["x-route-key"] = ev.RouteKey
	if ev.Type == EventDisconnect && ev.Disconnect != nil {
		header["x-disconnect-status-code"] = strconv.Itoa(ev.Disconnect.StatusCode)
		header["x-disconnect-reason"] = ev.Disconnect.Reason
	}

	query := url.Values{}
	for name, value := range ev.Session.Query {
		query.Set(name, value)
	}

	body := []byte(ev.Body)
	contentType := "text/plain"
	if len(body) > 0 && json.Valid(body) {
		contentType = "application/json"
	}

	return HeaderRequest{
		Body:        body,
		Header:      header,
		Query:       query,
		ContentType: contentType,
	}
}

// multiValueHeaders mirrors every single-valued header into a one-element
// array. The backend contract requires the field even when it adds nothing.
func multiValueHeaders(headers map[string]string) map[string][]string {
	mv := make(map[string][]string, len(headers))
	for name, value := range headers {
		mv[name] = []string{value}
	}
	return mv
}
