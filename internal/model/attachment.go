// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/base64"
	"errors"
	"strings"
)

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is a file handed to a provider alongside a message.
//
// Data is the bare base64 payload (no "data:...;base64," prefix). Adapters
// that cannot handle a given MIME class drop the attachment silently rather
// than failing the whole turn.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"` // MIME type, e.g. "image/png"
	Data string `json:"data"` // base64-encoded payload
}

// ErrInvalidAttachment indicates the attachment payload is not valid base64.
var ErrInvalidAttachment = errors.New("attachment data is not valid base64")

// Validate checks that the attachment payload is decodable base64.
// Data-URI prefixes are stripped before checking.
func (a *Attachment) Validate() error {
	payload := a.payload()
	if payload == "" {
		return ErrInvalidAttachment
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return ErrInvalidAttachment
	}
	return nil
}

// IsImage reports whether the attachment is an image.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.Type, "image/")
}

// Payload returns the bare base64 payload, stripping any data-URI prefix
// a careless caller may have left in place.
func (a *Attachment) Payload() string {
	return a.payload()
}

// DataURI returns the attachment as a data URI for protocols that embed
// images by URL (OpenRouter-style image_url parts).
func (a *Attachment) DataURI() string {
	return "data:" + a.Type + ";base64," + a.payload()
}

func (a *Attachment) payload() string {
	if idx := strings.Index(a.Data, ";base64,"); idx >= 0 {
		return a.Data[idx+len(";base64,"):]
	}
	return a.Data
}
