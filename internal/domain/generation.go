package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
)

// ErrInvalidBody reports a request body that is not valid JSON.
var ErrInvalidBody = errors.New("invalid request body")

// GenerationRequest is the user-supplied input for one text-to-image call.
// Fields hold the raw JSON values as received: an absent field stays empty and
// is omitted upstream, a wrong-typed one is forwarded unchanged.
type GenerationRequest struct {
	Prompt json.RawMessage `json:"prompt,omitempty"`
	Width  json.RawMessage `json:"width,omitempty"`
	Height json.RawMessage `json:"height,omitempty"`
	Steps  json.RawMessage `json:"steps,omitempty"`
	N      json.RawMessage `json:"n,omitempty"`
}

// NewGenerationRequest builds a well-typed request.
func NewGenerationRequest(prompt string, width, height, steps, n int) GenerationRequest {
	return GenerationRequest{
		Prompt: mustRaw(prompt),
		Width:  mustRaw(width),
		Height: mustRaw(height),
		Steps:  mustRaw(steps),
		N:      mustRaw(n),
	}
}

// ParseGenerationRequest reads a decoded JSON body. Any valid JSON value is
// accepted; only an object contributes fields.
func ParseGenerationRequest(body []byte) (GenerationRequest, error) {
	var req GenerationRequest
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return req, ErrInvalidBody
	}
	if len(body) == 0 || body[0] != '{' {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, ErrInvalidBody
	}
	return req, nil
}

// PromptText returns the prompt when it is a JSON string.
func (r GenerationRequest) PromptText() string {
	var s string
	if json.Unmarshal(r.Prompt, &s) != nil {
		return ""
	}
	return s
}

// IntValue returns raw as an int when it holds an integral JSON number, or 0.
func IntValue(raw json.RawMessage) int {
	var f float64
	if json.Unmarshal(raw, &f) != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// GenerationResult holds the base64 payload of the first generated image.
type GenerationResult struct {
	ImageData string
}

// HostedImage is the public location of an uploaded image. DeleteURL lets an
// operator remove the upload later.
type HostedImage struct {
	URL       string
	DeleteURL string
}

// GenerationRecord is the persisted row describing one completed generation.
type GenerationRecord struct {
	ID       int64  `json:"id"`
	Prompt   string `json:"prompt"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Steps    int    `json:"steps"`
	N        int    `json:"n"`
	ImageURL string `json:"image_url"`
}

// NewGenerationRecord builds the record for a request whose image was hosted at
// url. Values that are not well typed are stored as zero.
func NewGenerationRecord(req GenerationRequest, url string) *GenerationRecord {
	return &GenerationRecord{
		Prompt:   req.PromptText(),
		Width:    IntValue(req.Width),
		Height:   IntValue(req.Height),
		Steps:    IntValue(req.Steps),
		N:        IntValue(req.N),
		ImageURL: url,
	}
}
