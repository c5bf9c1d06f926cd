package ingest

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"github.com/marketdata/moldfeed/internal/protocol/mold"
	"github.com/marketdata/moldfeed/internal/protocol/render"
	"github.com/marketdata/moldfeed/internal/protocol/schema"
	"github.com/marketdata/moldfeed/internal/protocol/wire"
	"github.com/marketdata/moldfeed/internal/recovery"
)

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	g, err := schema.BuildMsgSpec('G', []schema.RawField{
		{Name: "value", Type: "uint64", Size: 8},
	})
	if err != nil {
		t.Fatalf("build G: %v", err)
	}
	return schema.NewCatalog([]schema.MsgSpec{g})
}

func buildHeader(session string, seq uint64, count uint16) []byte {
	buf := make([]byte, mold.HeaderSize)
	copy(buf[0:10], []byte(session))
	wire.PutU64BE(buf[10:18], seq)
	wire.PutU16BE(buf[18:20], count)
	return buf
}

func buildBlock(body []byte) []byte {
	lenPrefix := make([]byte, 2)
	wire.PutU16BE(lenPrefix, uint16(len(body)))
	return append(lenPrefix, body...)
}

func uint64Field(v uint64) []byte {
	buf := make([]byte, 8)
	wire.PutU64BE(buf, v)
	return buf
}

func gMessage(v uint64) []byte {
	return append([]byte{'G'}, uint64Field(v)...)
}

// fakeBatch replays one fixed list of datagrams, one per RecvBatch call,
// then reports no further data.
type fakeBatch struct {
	datagrams [][]byte
	pos       int
}

func (f *fakeBatch) RecvBatch() (int, error) {
	if f.pos >= len(f.datagrams) {
		return 0, nil
	}
	f.pos++
	return 1, nil
}

func (f *fakeBatch) Datagram(i int) []byte {
	return f.datagrams[f.pos-1]
}

// stubRecoverer returns as many recovered messages as respond reports and renders
// synthetic 'G' messages for them starting at the requested sequence.
type stubRecoverer struct {
	respond func(startSeq, count uint64) uint64
}

func (s *stubRecoverer) Recover(session [mold.SessionSize]byte, startSeq, count uint64, opt mold.DecodeOptions, cat *schema.Catalog, out *render.Buffer, write func([]byte) error) (uint64, recovery.Outcome) {
	got := s.respond(startSeq, count)
	if got > 0 {
		packet := buildHeader("XNET------", startSeq, uint16(got))
		for i := uint64(0); i < got; i++ {
			packet = append(packet, buildBlock(gMessage(startSeq+i))...)
		}
		mold.Decode(packet, opt, cat, out)
		_ = write(out.Bytes())
	}
	if got >= count {
		return got, recovery.OutcomeFull
	}
	if got == 0 {
		return 0, recovery.OutcomeStalled
	}
	return got, recovery.OutcomePartial
}

func runLoop(t *testing.T, batch *fakeBatch, rec Recoverer, opt Options) string {
	t.Helper()
	cat := testCatalog(t)
	buf := render.NewBuffer(make([]byte, 8192))
	var out bytes.Buffer
	loop := New(batch, cat, rec, &out, buf, zerolog.Nop(), opt, func() bool {
		return batch.pos >= len(batch.datagrams)
	})
	if err := loop.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

// S4: full recovery closes the gap exactly.
func TestGapFullRecovery(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		append(buildHeader("XNET------", 1, 2), append(buildBlock(gMessage(1)), buildBlock(gMessage(2))...)...),
		append(buildHeader("XNET------", 5, 1), buildBlock(gMessage(5))...),
	}}
	rec := &stubRecoverer{respond: func(startSeq, count uint64) uint64 { return count }}

	got := runLoop(t, batch, rec, Options{GapFill: true})

	want := ">> {'XNET------', 1, 2,'G', '1'}\n" +
		">> {'XNET------', 2, 2,'G', '2'}\n" +
		">> {'XNET------', 3, 2,'G', '3'}\n" +
		">> {'XNET------', 4, 2,'G', '4'}\n" +
		">> {'XNET------', 5, 1,'G', '5'}\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

// S5: partial recovery still resyncs expected_seq to the live packet.
func TestGapPartialRecovery(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		append(buildHeader("XNET------", 1, 2), append(buildBlock(gMessage(1)), buildBlock(gMessage(2))...)...),
		append(buildHeader("XNET------", 5, 1), buildBlock(gMessage(5))...),
	}}
	rec := &stubRecoverer{respond: func(startSeq, count uint64) uint64 {
		if count > 1 {
			return 1 // only the first missing message comes back
		}
		return count
	}}

	got := runLoop(t, batch, rec, Options{GapFill: true})

	want := ">> {'XNET------', 1, 2,'G', '1'}\n" +
		">> {'XNET------', 2, 2,'G', '2'}\n" +
		">> {'XNET------', 3, 1,'G', '3'}\n" +
		">> {'XNET------', 5, 1,'G', '5'}\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

// S6: duplicate datagrams are dropped, not re-emitted.
func TestDuplicateDatagramDropped(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		append(buildHeader("XNET------", 1, 1), buildBlock(gMessage(1))...),
		append(buildHeader("XNET------", 1, 1), buildBlock(gMessage(1))...),
		append(buildHeader("XNET------", 2, 1), buildBlock(gMessage(2))...),
	}}

	got := runLoop(t, batch, nil, Options{})

	want := ">> {'XNET------', 1, 1,'G', '1'}\n" +
		">> {'XNET------', 2, 1,'G', '2'}\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

// Property 5: sequence numbers in emitted output never decrease and never
// repeat, regardless of loss or duplication in the input stream, when
// gap-fill is disabled (so emitted seq tracks live arrivals one-to-one).
func TestEmittedSequenceIsMonotonicWithoutGapFill(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		append(buildHeader("XNET------", 1, 1), buildBlock(gMessage(1))...),
		append(buildHeader("XNET------", 1, 1), buildBlock(gMessage(1))...), // dup
		append(buildHeader("XNET------", 3, 1), buildBlock(gMessage(3))...), // gap, not filled
		append(buildHeader("XNET------", 3, 1), buildBlock(gMessage(3))...), // dup
		append(buildHeader("XNET------", 4, 1), buildBlock(gMessage(4))...),
	}}

	got := runLoop(t, batch, nil, Options{})

	want := ">> {'XNET------', 1, 1,'G', '1'}\n" +
		">> {'XNET------', 3, 1,'G', '3'}\n" +
		">> {'XNET------', 4, 1,'G', '4'}\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestEndOfSessionSentinelPassesThrough(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		buildHeader("XNET------", 99, mold.SentinelMessageCount),
	}}

	got := runLoop(t, batch, nil, Options{})
	want := ">> {'XNET------', 99, 65535}\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMessageCapStopsLoop(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		append(buildHeader("XNET------", 1, 1), buildBlock(gMessage(1))...),
		append(buildHeader("XNET------", 2, 1), buildBlock(gMessage(2))...),
		append(buildHeader("XNET------", 3, 1), buildBlock(gMessage(3))...),
	}}

	got := runLoop(t, batch, nil, Options{MessageCap: 2})
	want := ">> {'XNET------', 1, 1,'G', '1'}\n" +
		">> {'XNET------', 2, 1,'G', '2'}\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestBoundedDownloadStopsAfterOneDatagramWithoutGapFill(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		append(buildHeader("XNET------", 5, 1), buildBlock(gMessage(5))...),
		append(buildHeader("XNET------", 6, 1), buildBlock(gMessage(6))...),
	}}
	rec := &stubRecoverer{respond: func(startSeq, count uint64) uint64 {
		t.Fatal("no gap exists between start-seq and the first live packet; recovery should not be invoked")
		return 0
	}}

	got := runLoop(t, batch, rec, Options{StartSeq: 5})

	want := ">> {'XNET------', 5, 1,'G', '5'}\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestBoundedDownloadRecoversGapBeforeStart(t *testing.T) {
	batch := &fakeBatch{datagrams: [][]byte{
		append(buildHeader("XNET------", 5, 1), buildBlock(gMessage(5))...),
	}}
	rec := &stubRecoverer{respond: func(startSeq, count uint64) uint64 { return count }}

	got := runLoop(t, batch, rec, Options{StartSeq: 3})

	want := ">> {'XNET------', 3, 2,'G', '3'}\n" +
		">> {'XNET------', 4, 2,'G', '4'}\n" +
		">> {'XNET------', 5, 1,'G', '5'}\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}
