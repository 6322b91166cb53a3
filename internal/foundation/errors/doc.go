// Package errors provides classified errors for the bakery control panel.
//
// Errors carry a category (routing and HTTP status mapping), a severity
// (logging level and whether the run should stop), a retry strategy, and a
// structured context map. Construction goes through fluent builders so call
// sites stay uniform:
//
//	return errors.PublishError("bucket sync failed").
//		WithContext("bucket", bucket).
//		Build()
package errors
