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

package storage

import (
	"context"
)

// DisplayNameStore owns the "userName" entry. Only the commit pipeline
// writes it.
type DisplayNameStore interface {
	// DisplayName returns the stored display name and whether one exists.
	DisplayName(ctx context.Context) (name string, exists bool, err error)
	// StageDisplayName writes name in a transaction and calls apply before
	// committing. If apply returns an error nothing is written. If apply
	// ran and the returned error is still non-nil, the commit failed.
	StageDisplayName(ctx context.Context, name string, apply func() error) error
}

// AvatarImageStore owns the "userProfilePicture" entry. Only avatar capture
// writes it.
type AvatarImageStore interface {
	// AvatarImage returns the stored avatar data URI and whether one exists.
	AvatarImage(ctx context.Context) (image string, exists bool, err error)
	// StageAvatarImage follows the same rules as StageDisplayName.
	StageAvatarImage(ctx context.Context, image string, apply func() error) error
}

type Database interface {
	DisplayNameStore
	AvatarImageStore
}
