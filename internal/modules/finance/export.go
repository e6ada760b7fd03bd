package finance

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"studiodesk/internal/domain"
)

const (
	sheetTransactions = "Transactions"
	sheetAccounts     = "Accounts"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var transactionHeaders = []string{"Date", "Kind", "Category", "Description", "Account", "To account", "Booking", "Amount"}

var accountHeaders = []string{"Account", "Type", "Opening balance", "Balance"}

// WriteWorkbook renders the ledger as an xlsx file: one sheet of entries and
// one of account balances. Expenses are written negative; transfers keep
// their positive amount.
func WriteWorkbook(w io.Writer, accounts []domain.Account, txns []domain.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTransactions); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetAccounts); err != nil {
		return err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}

	if err := writeHeader(f, sheetTransactions, transactionHeaders, bold); err != nil {
		return err
	}
	for i, t := range txns {
		row := i + 2
		dest, booking := "", ""
		if t.DestinationAccountID != nil {
			dest = names[*t.DestinationAccountID]
		}
		if t.BookingID != nil {
			booking = *t.BookingID
		}
		values := []interface{}{
			t.OccurredAt.Format(domain.DateLayout),
			string(t.Kind),
			t.Category,
			t.Description,
			names[t.AccountID],
			dest,
			booking,
			signedAmount(t).InexactFloat64(),
		}
		if err := setRow(f, sheetTransactions, row, values); err != nil {
			return err
		}
	}
	if len(txns) > 0 {
		if err := f.SetCellStyle(sheetTransactions, "H2", fmt.Sprintf("H%d", len(txns)+1), money); err != nil {
			return err
		}
	}

	if err := writeHeader(f, sheetAccounts, accountHeaders, bold); err != nil {
		return err
	}
	for i, a := range accounts {
		values := []interface{}{a.Name, string(a.Type), a.OpeningBalance.InexactFloat64(), a.Balance.InexactFloat64()}
		if err := setRow(f, sheetAccounts, i+2, values); err != nil {
			return err
		}
	}
	if len(accounts) > 0 {
		if err := f.SetCellStyle(sheetAccounts, "C2", fmt.Sprintf("D%d", len(accounts)+1), money); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheetTransactions, "A", "B", 12)
	_ = f.SetColWidth(sheetTransactions, "C", "C", 16)
	_ = f.SetColWidth(sheetTransactions, "D", "D", 36)
	_ = f.SetColWidth(sheetTransactions, "E", "G", 18)
	_ = f.SetColWidth(sheetTransactions, "H", "H", 14)
	_ = f.SetColWidth(sheetAccounts, "A", "D", 18)

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func signedAmount(t domain.Transaction) decimal.Decimal {
	if t.Kind == domain.TransactionExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}
