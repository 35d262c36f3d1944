package sqlite

import (
	"context"
	"database/sql"

	"github.com/fwojciec/partcrawl"
)

// Lookups used by the tests to inspect what a batch wrote.

// FindPart retrieves a part by its part number.
func (s *CatalogStore) FindPart(ctx context.Context, partNumber string) (*partcrawl.Part, error) {
	var p partcrawl.Part
	var mpn, manufacturer, sourceURL sql.NullString
	var price sql.NullFloat64
	var applianceType string

	err := s.db.QueryRowContext(ctx, `
		SELECT part_number, manufacturer_part_number, name, description, price, manufacturer, appliance_type, source_url
		FROM parts
		WHERE part_number = ?
	`, partcrawl.CanonicalPartNumber(partNumber)).Scan(&p.PartNumber, &mpn, &p.Name, &p.Description, &price,
		&manufacturer, &applianceType, &sourceURL)

	if err == sql.ErrNoRows {
		return nil, partcrawl.Errorf(partcrawl.ENOTFOUND, "part not found")
	}
	if err != nil {
		return nil, err
	}

	p.ManufacturerPartNumber = mpn.String
	p.Manufacturer = manufacturer.String
	p.SourceURL = sourceURL.String
	p.ApplianceType = partcrawl.ApplianceType(applianceType)
	if price.Valid {
		v := price.Float64
		p.Price = &v
	}
	return &p, nil
}

// FindModel retrieves a model by its model number.
func (s *CatalogStore) FindModel(ctx context.Context, modelNumber string) (*partcrawl.Model, error) {
	var m partcrawl.Model
	var brand, sourceURL sql.NullString
	var applianceType string

	err := s.db.QueryRowContext(ctx, `
		SELECT model_number, name, brand, appliance_type, source_url
		FROM models
		WHERE model_number = ?
	`, partcrawl.CanonicalModelNumber(modelNumber)).Scan(&m.ModelNumber, &m.Name, &brand, &applianceType, &sourceURL)

	if err == sql.ErrNoRows {
		return nil, partcrawl.Errorf(partcrawl.ENOTFOUND, "model not found")
	}
	if err != nil {
		return nil, err
	}

	m.Brand = brand.String
	m.SourceURL = sourceURL.String
	m.ApplianceType = partcrawl.ApplianceType(applianceType)
	return &m, nil
}

// ModelsForPart returns the model numbers compatible with a part, sorted.
func (s *CatalogStore) ModelsForPart(ctx context.Context, partNumber string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model_number FROM model_parts
		WHERE part_number = ?
		ORDER BY model_number
	`, partcrawl.CanonicalPartNumber(partNumber))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}
