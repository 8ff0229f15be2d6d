package dtype

// Metadata is the buffer's fixed per-slot metadata record (spec §3, §6):
// always exactly {counter: u64, timestamp_ns: u64, deadtime: f64}, length 1.
// Unlike data_dtype, its shape never varies by buffer, so it gets typed
// accessor names instead of generic Int64/Float64-by-field-name calls.
var Metadata = mustMetadata()

func mustMetadata() Dtype {
	d, err := New([]FieldSpec{
		{Name: "counter", Code: U64},
		{Name: "timestamp_ns", Code: U64},
		{Name: "deadtime", Code: F64},
	})
	if err != nil {
		panic(err) // the fixed metadata layout can never fail to construct
	}
	return d
}

// MetadataView wraps the one-record metadata view for a slot.
type MetadataView struct {
	v View
}

// NewMetadataView wraps buf (exactly Metadata.Size bytes) as a metadata
// record view.
func NewMetadataView(buf []byte) MetadataView {
	return MetadataView{v: NewView(buf, Metadata, 1)}
}

func (m MetadataView) Counter() uint64          { return m.v.Uint64("counter", 0) }
func (m MetadataView) SetCounter(c uint64)      { m.v.SetUint64("counter", 0, c) }
func (m MetadataView) TimestampNs() uint64      { return m.v.Uint64("timestamp_ns", 0) }
func (m MetadataView) SetTimestampNs(ts uint64) { m.v.SetUint64("timestamp_ns", 0, ts) }
func (m MetadataView) Deadtime() float64        { return m.v.Float64("deadtime", 0) }
func (m MetadataView) SetDeadtime(d float64)    { m.v.SetFloat64("deadtime", 0, d) }
