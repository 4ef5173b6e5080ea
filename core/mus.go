package core

import (
	"errors"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the stored domain types. Field order is
// part of the storage format; append new fields at the end only.

// ErrNegativeLength indicates a corrupt length prefix in serialized data.
var ErrNegativeLength = errors.New("negative length")

// IDMUS serializes ID values.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (id ID, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// Timestamps are stored as UnixMicro varints so serialization does not
// depend on the wall-clock location.

func marshalTime(t time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	t = time.UnixMicro(us).UTC()
	return
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 {
		err = ErrNegativeLength
		return
	}
	if length == 0 {
		return
	}
	v = make([]float32, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return
}

func marshalStringMap(m map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	for k, v := range m {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v, bs[n:])
	}
	return
}

func unmarshalStringMap(bs []byte) (m map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 {
		err = ErrNegativeLength
		return
	}
	if length == 0 {
		return
	}
	m = make(map[string]string, length)
	var n1 int
	var k, v string
	for i := 0; i < length; i++ {
		k, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		v, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		m[k] = v
	}
	return
}

func sizeStringMap(m map[string]string) (size int) {
	size = varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	return
}

// DreamMUS serializes Dream values.
var DreamMUS = dreamMUS{}

type dreamMUS struct{}

func (dreamMUS) Marshal(d Dream, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Text, bs[n:])
	n += varint.Int.Marshal(int(d.Status), bs[n:])
	n += varint.Int.Marshal(d.AttemptCount, bs[n:])
	n += ord.String.Marshal(d.LastError, bs[n:])
	n += marshalTime(d.SubmittedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return
}

func (dreamMUS) Unmarshal(bs []byte) (d Dream, n int, err error) {
	var n1 int
	d.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	d.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status int
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Status = DreamStatus(status)
	d.AttemptCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.SubmittedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (dreamMUS) Size(d Dream) (size int) {
	size = IDMUS.Size(d.Id)
	size += ord.String.Size(d.Text)
	size += varint.Int.Size(int(d.Status))
	size += varint.Int.Size(d.AttemptCount)
	size += ord.String.Size(d.LastError)
	size += sizeTime(d.SubmittedAt)
	size += sizeTime(d.UpdatedAt)
	return
}

func (s dreamMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// EmbeddingMUS serializes Embedding values.
var EmbeddingMUS = embeddingMUS{}

type embeddingMUS struct{}

func (embeddingMUS) Marshal(e Embedding, bs []byte) (n int) {
	n = IDMUS.Marshal(e.DreamId, bs)
	n += varint.Int.Marshal(e.ChunkIndex, bs[n:])
	n += varint.Int.Marshal(e.Start, bs[n:])
	n += varint.Int.Marshal(e.End, bs[n:])
	n += marshalVector(e.Vector, bs[n:])
	n += ord.String.Marshal(e.Model, bs[n:])
	n += varint.Int64.Marshal(e.LatencyMs, bs[n:])
	n += marshalTime(e.CreatedAt, bs[n:])
	return
}

func (embeddingMUS) Unmarshal(bs []byte) (e Embedding, n int, err error) {
	var n1 int
	e.DreamId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	e.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Start, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.End, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Vector, n1, err = unmarshalVector(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Model, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.LatencyMs, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (embeddingMUS) Size(e Embedding) (size int) {
	size = IDMUS.Size(e.DreamId)
	size += varint.Int.Size(e.ChunkIndex)
	size += varint.Int.Size(e.Start)
	size += varint.Int.Size(e.End)
	size += sizeVector(e.Vector)
	size += ord.String.Size(e.Model)
	size += varint.Int64.Size(e.LatencyMs)
	size += sizeTime(e.CreatedAt)
	return
}

func (s embeddingMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// ThemeMUS serializes Theme values.
var ThemeMUS = themeMUS{}

type themeMUS struct{}

func (themeMUS) Marshal(t Theme, bs []byte) (n int) {
	n = ord.String.Marshal(t.Code, bs)
	n += ord.String.Marshal(t.Label, bs[n:])
	n += marshalVector(t.Vector, bs[n:])
	return
}

func (themeMUS) Unmarshal(bs []byte) (t Theme, n int, err error) {
	var n1 int
	t.Code, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	t.Label, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	t.Vector, n1, err = unmarshalVector(bs[n:])
	n += n1
	return
}

func (themeMUS) Size(t Theme) (size int) {
	size = ord.String.Size(t.Code)
	size += ord.String.Size(t.Label)
	size += sizeVector(t.Vector)
	return
}

func (s themeMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// ThemeMatchMUS serializes ThemeMatch values.
var ThemeMatchMUS = themeMatchMUS{}

type themeMatchMUS struct{}

func (themeMatchMUS) Marshal(m ThemeMatch, bs []byte) (n int) {
	n = IDMUS.Marshal(m.DreamId, bs)
	n += ord.String.Marshal(m.Code, bs[n:])
	n += raw.Float32.Marshal(m.Score, bs[n:])
	n += varint.Int.Marshal(m.ChunkIndex, bs[n:])
	return
}

func (themeMatchMUS) Unmarshal(bs []byte) (m ThemeMatch, n int, err error) {
	var n1 int
	m.DreamId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	m.Code, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.Score, n1, err = raw.Float32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (themeMatchMUS) Size(m ThemeMatch) (size int) {
	size = IDMUS.Size(m.DreamId)
	size += ord.String.Size(m.Code)
	size += raw.Float32.Size(m.Score)
	size += varint.Int.Size(m.ChunkIndex)
	return
}

func (s themeMatchMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// FragmentMUS serializes Fragment values.
var FragmentMUS = fragmentMUS{}

type fragmentMUS struct{}

func (fragmentMUS) Marshal(f Fragment, bs []byte) (n int) {
	n = IDMUS.Marshal(f.Id, bs)
	n += ord.String.Marshal(f.Text, bs[n:])
	n += ord.String.Marshal(f.Source, bs[n:])
	n += ord.String.Marshal(f.Scope, bs[n:])
	n += marshalStringMap(f.Metadata, bs[n:])
	n += marshalVector(f.Vector, bs[n:])
	return
}

func (fragmentMUS) Unmarshal(bs []byte) (f Fragment, n int, err error) {
	var n1 int
	f.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	f.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	f.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	f.Scope, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	f.Metadata, n1, err = unmarshalStringMap(bs[n:])
	n += n1
	if err != nil {
		return
	}
	f.Vector, n1, err = unmarshalVector(bs[n:])
	n += n1
	return
}

func (fragmentMUS) Size(f Fragment) (size int) {
	size = IDMUS.Size(f.Id)
	size += ord.String.Size(f.Text)
	size += ord.String.Size(f.Source)
	size += ord.String.Size(f.Scope)
	size += sizeStringMap(f.Metadata)
	size += sizeVector(f.Vector)
	return
}

func (s fragmentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// FragmentLinkMUS serializes FragmentLink values.
var FragmentLinkMUS = fragmentLinkMUS{}

type fragmentLinkMUS struct{}

func (fragmentLinkMUS) Marshal(l FragmentLink, bs []byte) (n int) {
	n = IDMUS.Marshal(l.FragmentId, bs)
	n += ord.String.Marshal(l.ThemeCode, bs[n:])
	n += raw.Float32.Marshal(l.Score, bs[n:])
	return
}

func (fragmentLinkMUS) Unmarshal(bs []byte) (l FragmentLink, n int, err error) {
	var n1 int
	l.FragmentId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	l.ThemeCode, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	l.Score, n1, err = raw.Float32.Unmarshal(bs[n:])
	n += n1
	return
}

func (fragmentLinkMUS) Size(l FragmentLink) (size int) {
	size = IDMUS.Size(l.FragmentId)
	size += ord.String.Size(l.ThemeCode)
	size += raw.Float32.Size(l.Score)
	return
}

func (s fragmentLinkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// JobMUS serializes Job values.
var JobMUS = jobMUS{}

type jobMUS struct{}

func (jobMUS) Marshal(j Job, bs []byte) (n int) {
	n = IDMUS.Marshal(j.DreamId, bs)
	n += varint.Int.Marshal(int(j.Status), bs[n:])
	n += varint.Int.Marshal(j.Attempts, bs[n:])
	n += varint.Int.Marshal(j.MaxAttempts, bs[n:])
	n += varint.Int.Marshal(j.Priority, bs[n:])
	n += marshalTime(j.ScheduledAt, bs[n:])
	n += marshalTime(j.StartedAt, bs[n:])
	n += marshalTime(j.CompletedAt, bs[n:])
	n += ord.String.Marshal(j.LastError, bs[n:])
	return
}

func (jobMUS) Unmarshal(bs []byte) (j Job, n int, err error) {
	var n1 int
	j.DreamId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var status int
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.Status = JobStatus(status)
	j.Attempts, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.MaxAttempts, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.Priority, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.ScheduledAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.StartedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.CompletedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (jobMUS) Size(j Job) (size int) {
	size = IDMUS.Size(j.DreamId)
	size += varint.Int.Size(int(j.Status))
	size += varint.Int.Size(j.Attempts)
	size += varint.Int.Size(j.MaxAttempts)
	size += varint.Int.Size(j.Priority)
	size += sizeTime(j.ScheduledAt)
	size += sizeTime(j.StartedAt)
	size += sizeTime(j.CompletedAt)
	size += ord.String.Size(j.LastError)
	return
}

func (s jobMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}
