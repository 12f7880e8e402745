// Package wire serializes a diagnostic.Report to a self-describing
// protobuf wire format, with the schema parsed at runtime rather than
// generated by protoc: a front end embedding this analyzer as a library
// can read the report without linking against any generated Go package,
// as long as it can parse one .proto file.
//
// Grounded on github.com/jhump/protoreflect's desc/protoparse (runtime
// .proto compilation) and dynamic (message values built against a
// descriptor instead of a generated struct) - the teacher's go.mod pulls
// this dependency in but the retrieved sources never exercised it, so this
// is new code written the way the library's own documentation does.
package wire

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"

	"github.com/Radbuglet/autoken-go/internal/diagnostic"
)

// schema is the wire format's entire contract: one file, compiled on first
// use by descriptors and cached in reportDesc/diagnosticDesc.
const schema = `
syntax = "proto3";
package autoken.wire;

message Diagnostic {
  string kind      = 1;
  string severity  = 2;
  string component = 3;
  string file      = 4;
  int32  line      = 5;
  int32  col       = 6;
  string message   = 7;
}

message Report {
  repeated Diagnostic diagnostics = 1;
}
`

var (
	reportDesc     *desc.MessageDescriptor
	diagnosticDesc *desc.MessageDescriptor
)

func descriptors() (*desc.MessageDescriptor, *desc.MessageDescriptor, error) {
	if reportDesc != nil {
		return reportDesc, diagnosticDesc, nil
	}
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{"autoken.proto": schema}),
	}
	files, err := parser.ParseFiles("autoken.proto")
	if err != nil {
		return nil, nil, fmt.Errorf("wire: compile schema: %w", err)
	}
	file := files[0]
	reportDesc = file.FindMessage("autoken.wire.Report")
	diagnosticDesc = file.FindMessage("autoken.wire.Diagnostic")
	if reportDesc == nil || diagnosticDesc == nil {
		return nil, nil, fmt.Errorf("wire: schema missing expected messages")
	}
	return reportDesc, diagnosticDesc, nil
}

// Marshal encodes report as a protobuf-serialized autoken.wire.Report
// message, built dynamically against the runtime-compiled schema.
func Marshal(report *diagnostic.Report) ([]byte, error) {
	reportMD, diagMD, err := descriptors()
	if err != nil {
		return nil, err
	}

	out := dynamic.NewMessage(reportMD)
	for _, d := range report.Diagnostics {
		dm := dynamic.NewMessage(diagMD)
		dm.SetFieldByName("kind", string(d.Kind))
		dm.SetFieldByName("severity", severityName(d.Severity))
		dm.SetFieldByName("component", d.Component.String())
		dm.SetFieldByName("file", d.Location.File)
		dm.SetFieldByName("line", int32(d.Location.Line))
		dm.SetFieldByName("col", int32(d.Location.Col))
		dm.SetFieldByName("message", d.Message)
		if err := out.TryAddRepeatedField("diagnostics", dm); err != nil {
			return nil, fmt.Errorf("wire: append diagnostic: %w", err)
		}
	}
	return out.Marshal()
}

// Row is one decoded autoken.wire.Diagnostic message.
type Row struct {
	Kind      string
	Severity  string
	Component string
	File      string
	Line      int32
	Col       int32
	Message   string
}

// Unmarshal decodes data produced by Marshal back into a slice of
// diagnostic-shaped rows. It returns plain structs rather than
// *diagnostic.Diagnostic, since a wire-format consumer is typically a
// separate process that doesn't share the diagnostic package's types.
func Unmarshal(data []byte) ([]Row, error) {
	reportMD, _, err := descriptors()
	if err != nil {
		return nil, err
	}
	msg := dynamic.NewMessage(reportMD)
	if err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("wire: decode report: %w", err)
	}

	var rows []Row
	for _, fv := range msg.GetField(reportMD.FindFieldByName("diagnostics")).([]interface{}) {
		dm, ok := fv.(*dynamic.Message)
		if !ok {
			continue
		}
		rows = append(rows, Row{
			Kind:      dm.GetFieldByName("kind").(string),
			Severity:  dm.GetFieldByName("severity").(string),
			Component: dm.GetFieldByName("component").(string),
			File:      dm.GetFieldByName("file").(string),
			Line:      dm.GetFieldByName("line").(int32),
			Col:       dm.GetFieldByName("col").(int32),
			Message:   dm.GetFieldByName("message").(string),
		})
	}
	return rows, nil
}

func severityName(s diagnostic.Severity) string {
	if s == diagnostic.SeverityWarning {
		return "warning"
	}
	return "error"
}
