// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data.
// Bodies may be JSON or form-encoded; handlers read fields by name without
// caring which.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/core"
)

const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters,
// defaulting to now. Values that are present but malformed are rejected.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: invalid year %q", core.ErrValidationFailed, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("%w: invalid month %q", core.ErrValidationFailed, v)
		}
		params.Month = m
	}
	return params, nil
}

// ParseCurrencyParam returns the upper-cased currency query value, or def.
func ParseCurrencyParam(query url.Values, def string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(query.Get("currency")))
	if v == "" {
		return def, nil
	}
	if _, ok := core.LookupCurrency(v); !ok {
		return "", fmt.Errorf("%w: unknown currency %q", core.ErrValidationFailed, v)
	}
	return v, nil
}

// ParseDirectionParam reads a direction from a path or query value.
func ParseDirectionParam(v string, allowAll bool) (core.Direction, error) {
	d, err := core.ParseDirection(v, allowAll)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrValidationFailed, err)
	}
	return d, nil
}

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Has reports whether key was sent, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseTransactionInput builds a transaction from a parsed body. The amount
// may be sent as a string or a number.
func ParseTransactionInput(p *RequestBodyParser) (core.Transaction, error) {
	fail := func(err error) (core.Transaction, error) {
		return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrValidationFailed, err)
	}

	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return fail(err)
	}
	typ, err := core.ParseDirection(p.Get("type"), false)
	if err != nil {
		return fail(err)
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return fail(err)
	}
	return core.Transaction{
		Date:        date,
		Type:        typ,
		Amount:      amount,
		Currency:    strings.ToUpper(p.Get("currency")),
		Category:    p.Get("category"),
		Description: p.Get("description"),
	}, nil
}
