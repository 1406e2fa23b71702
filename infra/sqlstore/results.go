package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kilianp07/recsizing/core/model"
)

// Complete writes every result row and marks the order successful inside a
// single transaction. Nothing is visible to readers until commit.
func (s *Store) Complete(ctx context.Context, id string, res model.Results) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	g := res.General
	if err = s.insertRows(ctx, tx, generalTable, id, 1, func(int) []any {
		return []any{g.ObjectiveValue, g.MILPStatus, g.TotalRECCost}
	}); err != nil {
		return err
	}
	if err = s.insertRows(ctx, tx, memberCostsTable, id, len(res.MemberCosts), func(i int) []any {
		m := res.MemberCosts[i]
		return []any{m.MeterID, m.MemberCost, m.MemberCostCompensation, m.MemberSavings}
	}); err != nil {
		return err
	}
	if err = s.insertRows(ctx, tx, investmentsTable, id, len(res.MeterInvestments), func(i int) []any {
		m := res.MeterInvestments[i]
		return []any{m.MeterID, m.InstallationCost, m.InstallationCostCompensation, m.InstallationSavings,
			m.InstalledPV, m.PVInvestmentCost, m.InstalledStorage, m.StorageInvestmentCost,
			m.TotalPV, m.TotalStorage, m.ContractedPower, m.ContractedPowerCost,
			m.RetailerExchangeCosts, m.SCTariffsCosts}
	}); err != nil {
		return err
	}

	fam := familyFor(res.Clustered)
	ix := func(t model.TimeIndex) []any { return indexArgs(t, res.Clustered) }
	if err = s.insertRows(ctx, tx, fam.lem, id, len(res.LemPrices), func(i int) []any {
		p := res.LemPrices[i]
		return append(ix(p.Index), p.Value)
	}); err != nil {
		return err
	}
	if err = s.insertRows(ctx, tx, fam.tariffs, id, len(res.SelfConsumptionTariffs), func(i int) []any {
		p := res.SelfConsumptionTariffs[i]
		return append(ix(p.Index), p.Tariff)
	}); err != nil {
		return err
	}
	if err = s.insertRows(ctx, tx, fam.inputs, id, len(res.MeterInputs), func(i int) []any {
		m := res.MeterInputs[i]
		args := append([]any{m.MeterID}, ix(m.Index)...)
		return append(args, m.EnergyGenerated, m.EnergyConsumed, m.BuyTariff, m.SellTariff)
	}); err != nil {
		return err
	}
	if err = s.insertRows(ctx, tx, fam.outputs, id, len(res.MeterOutputs), func(i int) []any {
		m := res.MeterOutputs[i]
		args := append([]any{m.MeterID}, ix(m.Index)...)
		return append(args, m.EnergySurplus, m.EnergySupplied, m.EnergyPurchasedLEM, m.EnergySoldLEM,
			m.NetLoad, m.BESSEnergyCharged, m.BESSEnergyDischarged, m.BESSEnergyContent)
	}); err != nil {
		return err
	}

	if err = s.finish(ctx, tx, id, model.CodeNone, ""); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) insertRows(ctx context.Context, tx *sql.Tx, t tableDef, id string, n int, row func(int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.d.rebind(t.insertSQL()))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", t.name, err)
	}
	defer func() { _ = stmt.Close() }()
	for i := 0; i < n; i++ {
		args := append([]any{id}, row(i)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", t.name, err)
		}
	}
	return nil
}

func indexArgs(t model.TimeIndex, clustered bool) []any {
	if clustered {
		return []any{t.Time, t.ClusterNr, t.ClusterWeight}
	}
	return []any{t.Datetime.UTC().Format(time.RFC3339)}
}

// indexScanner returns scan destinations for the time index columns and a
// function decoding them after Scan.
func indexScanner(clustered bool) ([]any, func() (model.TimeIndex, error)) {
	if clustered {
		var ix model.TimeIndex
		return []any{&ix.Time, &ix.ClusterNr, &ix.ClusterWeight}, func() (model.TimeIndex, error) { return ix, nil }
	}
	var raw string
	return []any{&raw}, func() (model.TimeIndex, error) {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return model.TimeIndex{}, fmt.Errorf("parse datetime %q: %w", raw, err)
		}
		return model.TimeIndex{Datetime: ts.UTC()}, nil
	}
}

// LoadResults reads every result table of an order. Rows come back ordered by
// meter and time index.
func (s *Store) LoadResults(ctx context.Context, id string, clustered bool) (model.Results, error) {
	res := model.Results{Clustered: clustered}

	if err := s.scanRows(ctx, generalTable, id, func(rows *sql.Rows) error {
		return rows.Scan(&res.General.ObjectiveValue, &res.General.MILPStatus, &res.General.TotalRECCost)
	}); err != nil {
		return res, err
	}
	if err := s.scanRows(ctx, memberCostsTable, id, func(rows *sql.Rows) error {
		var m model.MemberCost
		if err := rows.Scan(&m.MeterID, &m.MemberCost, &m.MemberCostCompensation, &m.MemberSavings); err != nil {
			return err
		}
		res.MemberCosts = append(res.MemberCosts, m)
		return nil
	}); err != nil {
		return res, err
	}
	if err := s.scanRows(ctx, investmentsTable, id, func(rows *sql.Rows) error {
		var m model.MeterInvestment
		if err := rows.Scan(&m.MeterID, &m.InstallationCost, &m.InstallationCostCompensation, &m.InstallationSavings,
			&m.InstalledPV, &m.PVInvestmentCost, &m.InstalledStorage, &m.StorageInvestmentCost,
			&m.TotalPV, &m.TotalStorage, &m.ContractedPower, &m.ContractedPowerCost,
			&m.RetailerExchangeCosts, &m.SCTariffsCosts); err != nil {
			return err
		}
		res.MeterInvestments = append(res.MeterInvestments, m)
		return nil
	}); err != nil {
		return res, err
	}

	fam := familyFor(clustered)
	if err := s.scanRows(ctx, fam.lem, id, func(rows *sql.Rows) error {
		dest, decode := indexScanner(clustered)
		var p model.LemPrice
		if err := rows.Scan(append(dest, &p.Value)...); err != nil {
			return err
		}
		var err error
		p.Index, err = decode()
		res.LemPrices = append(res.LemPrices, p)
		return err
	}); err != nil {
		return res, err
	}
	if err := s.scanRows(ctx, fam.tariffs, id, func(rows *sql.Rows) error {
		dest, decode := indexScanner(clustered)
		var p model.SelfConsumptionTariff
		if err := rows.Scan(append(dest, &p.Tariff)...); err != nil {
			return err
		}
		var err error
		p.Index, err = decode()
		res.SelfConsumptionTariffs = append(res.SelfConsumptionTariffs, p)
		return err
	}); err != nil {
		return res, err
	}
	if err := s.scanRows(ctx, fam.inputs, id, func(rows *sql.Rows) error {
		dest, decode := indexScanner(clustered)
		var m model.MeterOperationInput
		args := append([]any{&m.MeterID}, dest...)
		args = append(args, &m.EnergyGenerated, &m.EnergyConsumed, &m.BuyTariff, &m.SellTariff)
		if err := rows.Scan(args...); err != nil {
			return err
		}
		var err error
		m.Index, err = decode()
		res.MeterInputs = append(res.MeterInputs, m)
		return err
	}); err != nil {
		return res, err
	}
	if err := s.scanRows(ctx, fam.outputs, id, func(rows *sql.Rows) error {
		dest, decode := indexScanner(clustered)
		var m model.MeterOperationOutput
		args := append([]any{&m.MeterID}, dest...)
		args = append(args, &m.EnergySurplus, &m.EnergySupplied, &m.EnergyPurchasedLEM, &m.EnergySoldLEM,
			&m.NetLoad, &m.BESSEnergyCharged, &m.BESSEnergyDischarged, &m.BESSEnergyContent)
		if err := rows.Scan(args...); err != nil {
			return err
		}
		var err error
		m.Index, err = decode()
		res.MeterOutputs = append(res.MeterOutputs, m)
		return err
	}); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Store) scanRows(ctx context.Context, t tableDef, id string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(t.selectSQL()), id)
	if err != nil {
		return fmt.Errorf("query %s: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", t.name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", t.name, err)
	}
	return nil
}
