// Package parquet writes and reads models.ResultSet values as Parquet
// files using Arrow. Writes are atomic: data goes to a temporary file
// that is renamed over the destination only on success, so a failed
// work item never leaves a partial file behind.
package parquet

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/parquetry/parquetry/pkg/models"
	"github.com/parquetry/parquetry/pkg/perrors"
)

// WriteFile writes a result set to path with an atomic replace.
func WriteFile(path string, rs *models.ResultSet) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to create output file")
	}

	if err := write(f, rs); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to sync output file")
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to close output file")
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to replace output file")
	}

	return nil
}

// sinkWriter hides the file's Close method from the Parquet writer,
// which closes any io.Closer sink on Close. WriteFile keeps ownership of
// the file so it can sync and close it exactly once before the rename.
type sinkWriter struct {
	io.Writer
}

func write(f *os.File, rs *models.ResultSet) error {
	arrowSchema, err := toArrowSchema(rs.Schema)
	if err != nil {
		return err
	}

	alloc := memory.NewGoAllocator()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(alloc))

	fw, err := pqarrow.NewFileWriter(arrowSchema, sinkWriter{f}, props, arrowProps)
	if err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to create Parquet writer")
	}

	if rs.NumRows() > 0 {
		builder := array.NewRecordBuilder(alloc, arrowSchema)
		defer builder.Release()

		for _, row := range rs.Rows {
			for i := range arrowSchema.Fields() {
				if err := appendValue(builder.Field(i), row[i]); err != nil {
					_ = fw.Close()
					return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to encode value").
						WithDetail("column", arrowSchema.Field(i).Name)
				}
			}
		}

		record := builder.NewRecord()
		defer record.Release()

		if err := fw.WriteBuffered(record); err != nil {
			_ = fw.Close()
			return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to write record batch")
		}
	}

	// A zero-row result still writes the full file schema.
	if err := fw.Close(); err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to finalize Parquet file")
	}

	return nil
}

func appendValue(builder array.Builder, value interface{}) error {
	if value == nil {
		builder.AppendNull()
		return nil
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		if v, ok := value.(bool); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}

	case *array.Int64Builder:
		switch v := value.(type) {
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		default:
			b.AppendNull()
		}

	case *array.Float64Builder:
		switch v := value.(type) {
		case float32:
			b.Append(float64(v))
		case float64:
			b.Append(v)
		case int64:
			b.Append(float64(v))
		default:
			b.AppendNull()
		}

	case *array.StringBuilder:
		switch v := value.(type) {
		case string:
			b.Append(v)
		case []byte:
			b.Append(string(v))
		default:
			// Untyped expression columns land here; render them
			b.Append(fmt.Sprintf("%v", v))
		}

	case *array.TimestampBuilder:
		switch v := value.(type) {
		case time.Time:
			b.Append(arrow.Timestamp(v.UnixNano()))
		case string:
			if t, ok := parseTimestamp(v); ok {
				b.Append(arrow.Timestamp(t.UnixNano()))
			} else {
				b.AppendNull()
			}
		case []byte:
			if t, ok := parseTimestamp(string(v)); ok {
				b.Append(arrow.Timestamp(t.UnixNano()))
			} else {
				b.AppendNull()
			}
		default:
			b.AppendNull()
		}

	case *array.BinaryBuilder:
		switch v := value.(type) {
		case []byte:
			b.Append(v)
		case string:
			b.Append([]byte(v))
		default:
			b.AppendNull()
		}

	default:
		return perrors.Newf(perrors.ErrorTypeWrite, "unsupported builder type %T", builder)
	}

	return nil
}

// timestampLayouts covers the textual forms drivers hand back: RFC 3339
// and the bare SQL datetime/date forms. Fractional seconds are accepted
// by time.Parse without appearing in the layout.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ReadFile loads an entire Parquet file back into a result set. The
// export tests and the inspect command use it; production runs only
// write.
func ReadFile(path string) (*models.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to open Parquet file")
	}
	defer f.Close()

	fr, err := file.NewParquetReader(f)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to read Parquet file")
	}
	defer fr.Close()

	alloc := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, alloc)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to create Arrow reader")
	}

	arrowSchema, err := arrowReader.Schema()
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to read Parquet schema")
	}

	rs := models.NewResultSet(toModelSchema(arrowSchema))

	rr, err := arrowReader.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to read record batches")
	}
	defer rr.Release()

	for rr.Next() {
		record := rr.Record()
		for rowIdx := 0; rowIdx < int(record.NumRows()); rowIdx++ {
			row := make([]interface{}, record.NumCols())
			for colIdx := 0; colIdx < int(record.NumCols()); colIdx++ {
				row[colIdx] = columnValue(record.Column(colIdx), rowIdx)
			}
			rs.Append(row)
		}
	}

	return rs, nil
}

func columnValue(col arrow.Array, rowIdx int) interface{} {
	if col.IsNull(rowIdx) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(rowIdx)
	case *array.Int64:
		return c.Value(rowIdx)
	case *array.Float64:
		return c.Value(rowIdx)
	case *array.String:
		return c.Value(rowIdx)
	case *array.Binary:
		return c.Value(rowIdx)
	case *array.Timestamp:
		return time.Unix(0, int64(c.Value(rowIdx))).UTC()
	default:
		return nil
	}
}

// Schema conversion helpers

func toArrowSchema(schema *models.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(schema.Fields))

	for _, field := range schema.Fields {
		arrowType, err := toArrowType(field.Type)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.ErrorTypeData, "failed to convert field "+field.Name)
		}
		fields = append(fields, arrow.Field{
			Name:     field.Name,
			Type:     arrowType,
			Nullable: field.Nullable,
		})
	}

	return arrow.NewSchema(fields, nil), nil
}

func toArrowType(ft models.FieldType) (arrow.DataType, error) {
	switch ft {
	case models.FieldTypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case models.FieldTypeInt:
		return arrow.PrimitiveTypes.Int64, nil
	case models.FieldTypeFloat:
		return arrow.PrimitiveTypes.Float64, nil
	case models.FieldTypeString:
		return arrow.BinaryTypes.String, nil
	case models.FieldTypeBinary:
		return arrow.BinaryTypes.Binary, nil
	case models.FieldTypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	default:
		return nil, perrors.Newf(perrors.ErrorTypeData, "unsupported field type %q", ft)
	}
}

func toModelSchema(arrowSchema *arrow.Schema) *models.Schema {
	fields := make([]models.Field, 0, arrowSchema.NumFields())

	for i := 0; i < arrowSchema.NumFields(); i++ {
		field := arrowSchema.Field(i)
		fields = append(fields, models.Field{
			Name:     field.Name,
			Type:     toModelType(field.Type),
			Nullable: field.Nullable,
		})
	}

	return &models.Schema{Fields: fields}
}

func toModelType(arrowType arrow.DataType) models.FieldType {
	switch arrowType.ID() {
	case arrow.BOOL:
		return models.FieldTypeBool
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return models.FieldTypeInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return models.FieldTypeFloat
	case arrow.BINARY, arrow.LARGE_BINARY:
		return models.FieldTypeBinary
	case arrow.TIMESTAMP:
		return models.FieldTypeTimestamp
	default:
		return models.FieldTypeString
	}
}
