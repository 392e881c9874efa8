// Copyright 2024 The Perfil Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package avatar

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"io"
	"strings"

	// Register the decoders for every supported avatar format.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/catalogo-app/perfil/profileapi/api"
)

// Decoder turns raw image payloads into data URIs.
type Decoder struct {
	maxSize int64
}

func NewDecoder(maxSizeBytes int64) *Decoder {
	return &Decoder{maxSize: maxSizeBytes}
}

// MaxSize is the largest payload the decoder accepts, in bytes.
func (d *Decoder) MaxSize() int64 {
	return d.maxSize
}

// Decode reads the whole payload and returns it as
// "data:<mime>;base64,<payload>". The payload must be a gif, jpeg, png or
// webp image no larger than the configured maximum. Errors match
// api.ErrAvatarDecode or api.ErrAvatarTooLarge.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "avatar.Decode")
	defer span.Finish()

	data, err := io.ReadAll(io.LimitReader(r, d.maxSize+1))
	if err != nil {
		return "", errors.Wrapf(api.ErrAvatarDecode, "io.ReadAll: %s", err)
	}
	span.SetTag("size", len(data))
	if int64(len(data)) > d.maxSize {
		return "", errors.Wrapf(api.ErrAvatarTooLarge, "payload exceeds %d bytes", d.maxSize)
	}
	if len(data) == 0 {
		return "", errors.Wrap(api.ErrAvatarDecode, "empty payload")
	}
	if err = ctx.Err(); err != nil {
		return "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrapf(api.ErrAvatarDecode, "image.DecodeConfig: %s", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", errors.Wrapf(api.ErrAvatarDecode, "invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	span.SetTag("format", format)

	var sb strings.Builder
	sb.Grow(len("data:image/;base64,") + len(format) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString("data:")
	sb.WriteString(mimeType(format))
	sb.WriteString(";base64,")
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	_, _ = enc.Write(data)
	_ = enc.Close()
	return sb.String(), nil
}

func mimeType(format string) string {
	return "image/" + format
}
