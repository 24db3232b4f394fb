// Package oaskema validates API payloads against schema graphs compiled from
// OpenAPI documents.
//
// - Schemas are compiled once into an immutable arena graph (package schema)
// - A Validator walks a value against a node and reports one path-qualified
//   *ValidationError (or ValidationErrors when Options.CollectAll is set)
// - allOf members are merged into one object obligation; oneOf/anyOf members
//   are selected by discriminator or tried in turn
// - Bodies are decoded with DecodeBody/DecodeJSON/DecodeYAML
//
// Design policy:
// - Keep the validation core in the root package with no I/O
// - Put the OpenAPI loader/resolver under openapi/, HTTP glue under middleware/,
//   atomic document reload under registry/ and the CLI under cmd/oaskema
//
// Typical usage:
//
//	doc, err := openapi.LoadFile(ctx, "petstore.yaml", openapi.Options{})
//	op, err := doc.Operation("POST", "/save_the_pets")
//	err = op.ValidateRequestBody("application/json", body)
//	if ve, ok := oaskema.AsValidationError(err); ok {
//		fmt.Println(ve.Kind, ve.Message)
//	}
package oaskema
