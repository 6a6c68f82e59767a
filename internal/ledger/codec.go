package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"spendbot/internal/core"
)

type (
	recordJSON struct {
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
		Date     int64      `json:"date"`
	}

	userJSON struct {
		MenuID    int          `json:"menuId"`
		Spendings []recordJSON `json:"spendings"`
	}
)

// Encode renders data in the on-disk layout: an object keyed by user id with
// "menuId" and "spendings" members, dates as epoch milliseconds.
func Encode(data core.LedgerData) ([]byte, error) {
	out := make(map[int64]userJSON, len(data))
	for id, u := range data {
		recs := make([]recordJSON, 0, len(u.Spendings))
		for _, r := range u.Spendings {
			recs = append(recs, recordJSON{
				Category: r.Category,
				Amount:   r.Amount,
				Date:     r.OccurredAt.UnixMilli(),
			})
		}
		out[id] = userJSON{MenuID: u.MenuID, Spendings: recs}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return append(b, '\n'), nil
}

// Decode parses the on-disk layout. Blank input decodes to an empty map.
func Decode(b []byte) (core.LedgerData, error) {
	data := core.LedgerData{}
	if len(bytes.TrimSpace(b)) == 0 {
		return data, nil
	}
	var in map[int64]userJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return core.LedgerData{}, fmt.Errorf("decode ledger: %w", err)
	}
	for id, u := range in {
		recs := make([]core.ExpenseRecord, 0, len(u.Spendings))
		for _, r := range u.Spendings {
			recs = append(recs, core.ExpenseRecord{
				Category:   r.Category,
				Amount:     r.Amount,
				OccurredAt: time.UnixMilli(r.Date),
			})
		}
		data[id] = core.UserLedger{MenuID: u.MenuID, Spendings: recs}
	}
	return data, nil
}
