// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package client

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/samber/oops"
)

// Body is a request payload. Build one with JSONBody or RawBody; a nil Body
// sends no payload.
type Body interface {
	open() (io.Reader, string, error)
}

type jsonBody struct {
	value any
}

// JSONBody marshals v and sends it as application/json.
func JSONBody(v any) Body {
	return jsonBody{value: v}
}

func (b jsonBody) open() (io.Reader, string, error) {
	data, err := json.Marshal(b.value)
	if err != nil {
		return nil, "", oops.Code("CLIENT_ENCODE_FAILED").Wrap(err)
	}
	return bytes.NewReader(data), "application/json", nil
}

type rawBody struct {
	r           io.Reader
	contentType string
}

// RawBody streams r verbatim. No Content-Type is derived from the payload;
// contentType, when not empty, is sent as given (for example a multipart
// boundary from mime/multipart.Writer.FormDataContentType).
func RawBody(r io.Reader, contentType string) Body {
	return rawBody{r: r, contentType: contentType}
}

func (b rawBody) open() (io.Reader, string, error) {
	return b.r, b.contentType, nil
}
