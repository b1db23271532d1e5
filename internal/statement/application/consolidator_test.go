package application

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cota-capital/internal/dataset"
	"cota-capital/internal/logging"
	statement "cota-capital/internal/statement/domain"
)

type stubQuerier struct {
	table *dataset.Table
	err   error
	calls int
	stmt  string
}

func (s *stubQuerier) Execute(_ context.Context, stmt string, _ int) (*dataset.Table, error) {
	s.calls++
	s.stmt = stmt
	return s.table, s.err
}

type stubLoader struct {
	table *dataset.Table
	err   error
	path  string
}

func (s *stubLoader) Load(_ context.Context, path string) (*dataset.Table, error) {
	s.path = path
	return s.table, s.err
}

func remoteTable() *dataset.Table {
	return dataset.New(
		[]string{"conta", "capital_social", "movimentacao", "data_emissao", "tipo_valor_data_movimentacao"},
		[][]string{
			{"00123-4", "1000.00", "200.00", "05/03/2026", `[{"data_transacao":"10/02/2026","tipo_movimento":"INTEGRALIZACAO","valor_transacao":100.0},{"data_transacao":"20/02/2026","tipo_movimento":"RESGATE","valor_transacao":"-30"}]`},
			{"00999-9", "50.00", "0", "05/03/2026", ""},
			{"00200-1", "abc", "0", "not a date", "{broken"},
		},
	)
}

func indexTable() *dataset.Table {
	return dataset.New(
		[]string{"conta", "Agência", "administradora", "nome", "endereco_completo", "municipio", "email"},
		[][]string{
			{"00200-1", "2.0", "ADM NORTE", "Condominio B", "Rua B, 2", "Itajai", ""},
			{"00123-4", "1", "ADM CENTRO", "Condominio A", "Rua A, 1", "Blumenau", "a@x.com; b@x.com"},
			{"00777-7", "1", "ADM CENTRO", "Sem par", "Rua C", "Blumenau", "c@x.com"},
		},
	)
}

func newTestConsolidator(t *testing.T, q *stubQuerier, l *stubLoader) *Consolidator {
	t.Helper()
	c, err := NewConsolidator(q, l, ConsolidatorConfig{Statement: "SELECT * FROM contas", IndexPath: "/data/index.xlsx"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new consolidator: %v", err)
	}
	c.clock = func() time.Time { return time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestConsolidateInnerJoinKeepsIndexOrder(t *testing.T) {
	q := &stubQuerier{table: remoteTable()}
	l := &stubLoader{table: indexTable()}
	c := newTestConsolidator(t, q, l)

	result, err := c.Consolidate(context.Background())
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if l.path != "/data/index.xlsx" || q.stmt != "SELECT * FROM contas" {
		t.Fatalf("unexpected inputs path=%s stmt=%s", l.path, q.stmt)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 joined records, got %d", len(result.Records))
	}
	if len(result.Records) > result.RemoteRows || len(result.Records) > result.IndexRows {
		t.Fatalf("inner join produced more rows than a source")
	}
	if result.Records[0].AccountID != "00200-1" || result.Records[1].AccountID != "00123-4" {
		t.Fatalf("expected index order, got %s, %s", result.Records[0].AccountID, result.Records[1].AccountID)
	}
	pattern := regexp.MustCompile(`^\d{5}-\d$`)
	for _, r := range result.Records {
		if !pattern.MatchString(r.AccountID) {
			t.Fatalf("account %s not canonical", r.AccountID)
		}
	}

	a := result.Records[1]
	if a.Branch != 1 || a.Administrator != "ADM CENTRO" || a.HolderName != "Condominio A" || a.Municipality != "Blumenau" {
		t.Fatalf("unexpected mapped record %+v", a)
	}
	if statement.FormatAmount(a.OpeningBalance()) != "800,00" {
		t.Fatalf("expected opening 800,00, got %s", statement.FormatAmount(a.OpeningBalance()))
	}
	if len(a.Movements) != 2 || a.Movements[0].RawAmount != "100.0" || a.Movements[1].RawAmount != "-30" {
		t.Fatalf("unexpected movements %+v", a.Movements)
	}
	if a.EmissionLabel != "05/03/2026" {
		t.Fatalf("unexpected emission label %s", a.EmissionLabel)
	}

	b := result.Records[0]
	if b.Branch != 2 {
		t.Fatalf("expected branch 2 from 2.0, got %d", b.Branch)
	}
	if !b.CapitalBalance.IsZero() || len(b.Movements) != 0 {
		t.Fatalf("malformed values should degrade to zero values: %+v", b)
	}
	if b.EmissionLabel != "07/03/2026" {
		t.Fatalf("unparseable date should fall back to run date, got %s", b.EmissionLabel)
	}
	if result.Warnings != 3 {
		t.Fatalf("expected 3 warnings, got %d", result.Warnings)
	}
}

func TestConsolidateLogsWithContextLogger(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsolidator(t, &stubQuerier{table: remoteTable()}, &stubLoader{table: indexTable()})
	ctx := logging.WithContext(context.Background(), zerolog.New(&buf).With().Str("run_id", "run-7").Logger())
	if _, err := c.Consolidate(ctx); err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "consolidation finished") || !strings.Contains(out, `"run_id":"run-7"`) {
		t.Fatalf("expected run-scoped log lines, got %s", out)
	}
}

func TestConsolidateWarehouseErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	c := newTestConsolidator(t, &stubQuerier{err: boom}, &stubLoader{table: indexTable()})
	if _, err := c.Consolidate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected warehouse error, got %v", err)
	}
}

func TestConsolidateIndexErrorIsFatal(t *testing.T) {
	boom := errors.New("locked")
	c := newTestConsolidator(t, &stubQuerier{table: remoteTable()}, &stubLoader{err: boom})
	if _, err := c.Consolidate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestJoinRequiresKeyColumn(t *testing.T) {
	index := dataset.New([]string{"nome"}, nil)
	if _, err := Join(index, remoteTable(), ColumnAccount); !errors.Is(err, dataset.ErrColumnNotFound) {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestJoinIndexValueWinsUnlessBlank(t *testing.T) {
	index := dataset.New([]string{"conta", "nome", "email"}, [][]string{{"1234", "Index Name", ""}})
	remote := dataset.New([]string{"conta", "nome", "email"}, [][]string{{"00123-4", "Remote Name", "r@x.com"}})
	merged, err := Join(index, remote, ColumnAccount)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 row, got %d", len(merged))
	}
	if merged[0]["nome"] != "Index Name" || merged[0]["email"] != "r@x.com" || merged[0]["conta"] != "00123-4" {
		t.Fatalf("unexpected merge %v", merged[0])
	}
}

func TestNewConsolidatorValidates(t *testing.T) {
	if _, err := NewConsolidator(nil, &stubLoader{}, ConsolidatorConfig{Statement: "x", IndexPath: "y"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected nil querier error")
	}
	if _, err := NewConsolidator(&stubQuerier{}, &stubLoader{}, ConsolidatorConfig{IndexPath: "y"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected empty statement error")
	}
}
