// Package document contains the Document Generation bounded context.
// It owns template definitions and their field schemas, the validation and
// normalization of submitted field values, the derived values consumed by
// renderers (invoice totals, encoded symbol payloads), and the lifecycle of
// generated artifacts.
package document
