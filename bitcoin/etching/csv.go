// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package etching

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/Cobra9786/power/bitcoin/runes"
)

// CSVRow is one parsed line of the reference `etcher` CLI's input: a
// rune name, its display symbol, and its total (premined) supply.
type CSVRow struct {
	Name        string
	Symbol      rune
	TotalSupply *big.Int
}

// ParseCSV reads `{name, symbol, total_supply}` rows and turns each
// into a Spec with divisibility=0, turbo=true, and no mint terms (the
// entire supply is preminned to destination). currentBlock is used to
// reject names below the currently unlocked minimum length.
func ParseCSV(r io.Reader, currentBlock uint64, destination string) ([]Spec, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	specs := make([]Spec, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: expected 3 columns, got %d", i, len(row))
		}

		parsed, err := parseCSVRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		rune_, err := runes.NewRuneFromString(parsed.Name)
		if err != nil {
			return nil, fmt.Errorf("row %d: rune name %q: %w", i, parsed.Name, err)
		}

		if len(parsed.Name) < runes.MinNameLength(currentBlock) {
			return nil, fmt.Errorf("row %d: rune name %q shorter than the minimum unlocked at block %d", i, parsed.Name, currentBlock)
		}

		divisibility := byte(0)
		symbol := parsed.Symbol

		specs = append(specs, Spec{
			Etching: runes.Etching{
				Divisibility: &divisibility,
				Premine:      parsed.TotalSupply,
				Rune:         rune_,
				Symbol:       &symbol,
				Turbo:        true,
			},
			Destination: destination,
		})
	}

	return specs, nil
}

func parseCSVRow(row []string) (CSVRow, error) {
	name := strings.ToUpper(strings.TrimSpace(row[0]))
	symbolStr := strings.TrimSpace(row[1])
	supplyStr := strings.TrimSpace(row[2])

	if utf8.RuneCountInString(symbolStr) != 1 {
		return CSVRow{}, fmt.Errorf("symbol %q must be exactly one code point", symbolStr)
	}
	symbol, _ := utf8.DecodeRuneInString(symbolStr)

	supply, ok := new(big.Int).SetString(supplyStr, 10)
	if !ok {
		return CSVRow{}, fmt.Errorf("invalid total supply %q", supplyStr)
	}

	return CSVRow{Name: name, Symbol: symbol, TotalSupply: supply}, nil
}
