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

import (
	"fmt"
	"time"
)

// ValidateImageRecord validates an ImageRecord according to domain rules.
//
// Validation rules:
//   - ImageID, ProjectID and S3Key must not be empty
//   - SequenceNumber must be positive
//   - UploadedAt must not be in the future
//
// NOT validated (populated by the enrichment pipeline):
//   - Embedding (empty until enrichment runs)
//   - TextDescription (empty until enrichment runs)
//   - Filename (derived from S3Key during enrichment)
func ValidateImageRecord(record *ImageRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidImageRecord)
	}

	if record.ImageID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidImageRecord, ErrEmptyImageID)
	}

	if record.ProjectID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidImageRecord, ErrEmptyProjectID)
	}

	if record.S3Key == "" {
		return fmt.Errorf("%w: %w", ErrInvalidImageRecord, ErrEmptyS3Key)
	}

	if record.SequenceNumber == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidImageRecord, ErrInvalidSequence)
	}

	if !IsValidTimestamp(record.UploadedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidImageRecord, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
// Zero timestamps are valid; they are filled in at persist time.
func IsValidTimestamp(ts time.Time) bool {
	return ts.IsZero() || !ts.After(time.Now())
}
