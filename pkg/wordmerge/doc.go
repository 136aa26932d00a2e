// Package wordmerge fills DOCX templates built from MERGEFIELD fields with
// hierarchical data.
//
// # Quick Start
//
//	tmpl, err := wordmerge.PrepareFile("invoice.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := tmpl.Export([]byte(`{"customer": "ACME", "items": [{"name": "Widget"}]}`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Field Syntax
//
// Every directive is the field code of a Word merge field:
//
//	MERGEFIELD <directive> \* MERGEFORMAT
//
// The directive may be wrapped in double quotes. Supported forms:
//
//	name                      - field value with the default formatting
//	total(%.2f)               - default evaluator with a format
//	name:upper()              - evaluator call
//	price:currency(EUR, de)   - evaluator with parameters
//	if(age>=18) ... endif     - conditional block
//	loop(items) ... endloop   - repeated block
//	table(rows) ... endtable  - repeated table rows
//
// Inside a loop, fields resolve against the current item, which also
// carries _index (1-based) and _last. Items that are not objects are
// available as ".".
//
// Parameters are comma separated and typed by trial parsing: 2 is an
// integer, 2.5 a float, '2' the string "2".
//
// # Evaluators
//
// Built-ins: sub, left, right, trim, upper, lower, if, condition, currency,
// percentage, replace, image, barcode, qrcode, html, markdown and word.
// Custom evaluators are plain functions:
//
//	engine := wordmerge.New()
//	engine.RegisterEvaluator("initials", func(v any, params []any) (string, error) {
//	    ...
//	})
//
// # Errors
//
// Only a nil template source or nil data fail an export. Invalid
// directives, failing evaluators and missing fields are logged and
// rendered as well as possible.
package wordmerge
