// Copyright 2026 Chronolens Systems
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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidImageRecord indicates an ImageRecord failed validation.
	ErrInvalidImageRecord = errors.New("invalid image record")

	// ErrEmptyImageID indicates the ImageID field is empty.
	ErrEmptyImageID = errors.New("image id cannot be empty")

	// ErrEmptyProjectID indicates the ProjectID field is empty.
	ErrEmptyProjectID = errors.New("project id cannot be empty")

	// ErrEmptyS3Key indicates the S3Key field is empty.
	ErrEmptyS3Key = errors.New("s3 key cannot be empty")

	// ErrInvalidSequence indicates a sequence number outside the valid range.
	ErrInvalidSequence = errors.New("sequence number must be positive")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")
)
