package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/subledger/pkg/logger"
)

type seedFile struct {
	Plans []CreateInput `yaml:"plans"`
}

// ParseSeed decodes a YAML plan list:
//
//	plans:
//	  - name: Basic
//	    price: 9900
//	    currency: UAH
//	    interval: monthly
//	    features: [reports]
func ParseSeed(r io.Reader) ([]CreateInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	for i, p := range f.Plans {
		interval, err := ParseInterval(string(p.Interval))
		if err != nil {
			return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("plan %d (%s): %w", i, p.Name, err))
		}
		f.Plans[i].Interval = interval
	}
	return f.Plans, nil
}

// LoadSeedFile reads and parses a YAML seed file.
func LoadSeedFile(path string) ([]CreateInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// Seed creates every plan whose name is not in the catalog yet and returns
// how many were created. Running it again with the same input creates nothing.
func (s *Service) Seed(ctx context.Context, plans []CreateInput) (int, error) {
	created := 0
	for _, in := range plans {
		if _, err := s.GetByName(ctx, in.Name); err == nil {
			continue
		} else if !errors.Is(err, ErrPlanNotFound) {
			return created, err
		}
		if _, err := s.Create(ctx, in); err != nil {
			return created, fmt.Errorf("seed plan %q: %w", in.Name, err)
		}
		created++
	}
	if created > 0 {
		s.logger.InfoContext(ctx, "plans seeded", logger.Component("catalog"), "created", created)
	}
	return created, nil
}
