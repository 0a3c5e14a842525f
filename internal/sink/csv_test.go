package sink

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

func ptr[T any](v T) *T { return &v }

func sampleRecord() *entity.InvoiceRecord {
	return &entity.InvoiceRecord{
		InvoiceID:  "123",
		DateTime:   "2024-05-01 19:30",
		Receiver:   "Jane Doe",
		Restaurant: ptr("Test Diner"),
		OrderDetails: []map[string]*string{
			{"qty": ptr("2"), "item": ptr("Burger"), "note": nil},
		},
		Taxes:          2.5,
		DeliveryCharge: ptr(0.0),
		TotalAmount:    45,
	}
}

const header = "invoice_id,date_time,receiver,provider,restaurant,delivery_partner,order_details,taxes,delivery_charge,platform_fee,coupon_name,discount_amount,total_amount"

func TestAppend_WritesHeaderOnceAndTwoRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "invoice_data.csv")
	s := NewCSVSink(path, nil)

	require.NoError(t, s.Append(sampleRecord()))
	require.NoError(t, s.Append(sampleRecord()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, header, lines[0])
	assert.Equal(t, lines[1], lines[2])
	assert.Equal(t,
		`123,2024-05-01 19:30,Jane Doe,,Test Diner,,"[{'item': 'Burger', 'note': None, 'qty': '2'}]",2.5,0,,,,45`,
		lines[1])
}

func TestAppend_HeaderRules(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.NoError(t, NewCSVSink(empty, nil).Append(sampleRecord()))
	b, _ := os.ReadFile(empty)
	assert.True(t, strings.HasPrefix(string(b), header+"\n"))

	existing := filepath.Join(dir, "existing.csv")
	require.NoError(t, os.WriteFile(existing, []byte("something,else\n"), 0o644))
	require.NoError(t, NewCSVSink(existing, nil).Append(sampleRecord()))
	b, _ = os.ReadFile(existing)
	assert.True(t, strings.HasPrefix(string(b), "something,else\n123,"))
	assert.NotContains(t, string(b), header)
}

func TestAppend_ConcurrentAppendsKeepRowsIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice_data.csv")
	s := NewCSVSink(path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Append(sampleRecord()))
		}()
	}
	wg.Wait()

	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, entity.Columns, tbl.Header)
	assert.Len(t, tbl.Rows, 20)
}

func TestAppend_SinkErrors(t *testing.T) {
	dir := t.TempDir()
	err := NewCSVSink(dir, nil).Append(sampleRecord())
	assert.ErrorIs(t, err, common.ErrSink)

	err = NewCSVSink(filepath.Join(dir, "x.csv"), nil).Append(nil)
	assert.ErrorIs(t, err, common.ErrSink)
}

func TestRow_ListLiterals(t *testing.T) {
	rec := sampleRecord()
	rec.OrderDetails = []map[string]*string{}
	rec.CouponName = []map[string]*string{{"code": ptr("SAVE'10")}}
	rec.DiscountAmount = []map[string]*float64{{"SAVE10": ptr(10.0)}, {"x": nil}}
	rec.PlatformFee = ptr(1.25)

	row := Row(rec)
	assert.Equal(t, "[]", row[6])
	assert.Equal(t, "1.25", row[9])
	assert.Equal(t, `[{'code': "SAVE'10"}]`, row[10])
	assert.Equal(t, "[{'SAVE10': 10.0}, {'x': None}]", row[11])

	rec.OrderDetails = nil
	rec.CouponName = nil
	rec.DiscountAmount = nil
	row = Row(rec)
	assert.Equal(t, "[]", row[6])
	assert.Equal(t, "", row[10])
	assert.Equal(t, "", row[11])
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, quote("plain"))
	assert.Equal(t, `"it's"`, quote("it's"))
	assert.Equal(t, `'both \' and "'`, quote(`both ' and "`))
	assert.Equal(t, `'a\nb\\c'`, quote("a\nb\\c"))
}

func TestReadTable_Missing(t *testing.T) {
	tbl, err := ReadTable(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.True(t, tbl.Empty())
	assert.Nil(t, tbl.Header)
}
