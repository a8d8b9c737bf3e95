package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/apperrors"
	"github.com/FossRust/sme-suite/pkg/metrics"
	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/repositories"
)

// MaxSearchLimit is the hard ceiling on search page size.
const MaxSearchLimit = 50

// SearchService ranks free-text matches across companies, contacts and
// deals. A nil kind filter searches every kind; a present-but-empty
// filter produces an empty result without querying.
type SearchService interface {
	Search(ctx context.Context, query string, kinds []models.SearchKind, first, offset int) ([]models.SearchHit, error)
	SuggestCompanies(ctx context.Context, query string, first int) ([]*models.Company, error)
	SuggestContacts(ctx context.Context, query string, first int) ([]*models.Contact, error)
	SuggestDeals(ctx context.Context, query string, first int) ([]*models.Deal, error)
}

type searchService struct {
	searchRepo  repositories.SearchRepository
	companyRepo repositories.CompanyRepository
	contactRepo repositories.ContactRepository
	dealRepo    repositories.DealRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewSearchService creates a new search service with dependencies.
func NewSearchService(
	searchRepo repositories.SearchRepository,
	companyRepo repositories.CompanyRepository,
	contactRepo repositories.ContactRepository,
	dealRepo repositories.DealRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) SearchService {
	return &searchService{
		searchRepo:  searchRepo,
		companyRepo: companyRepo,
		contactRepo: contactRepo,
		dealRepo:    dealRepo,
		metrics:     m,
		logger:      logger,
	}
}

func (s *searchService) Search(ctx context.Context, query string, kinds []models.SearchKind, first, offset int) ([]models.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", apperrors.ErrValidation)
	}
	if first <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive", apperrors.ErrValidation)
	}
	if first > MaxSearchLimit {
		return nil, fmt.Errorf("%w: page size %d exceeds maximum %d", apperrors.ErrLimitExceeded, first, MaxSearchLimit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", apperrors.ErrValidation)
	}

	effective := resolveKinds(kinds)
	if len(effective) == 0 {
		return []models.SearchHit{}, nil
	}

	strategy := chooseStrategy(query)
	s.metrics.ObserveSearch(string(strategy))

	hits, err := s.searchRepo.Search(ctx, strategy, query, effective, uint64(first), uint64(offset))
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	for i := range hits {
		hits[i].Href = hitHref(hits[i].Kind, hits[i].ID)
	}

	return hits, nil
}

// SuggestCompanies searches only companies and returns the full entity
// rows in ranked order.
func (s *searchService) SuggestCompanies(ctx context.Context, query string, first int) ([]*models.Company, error) {
	hits, err := s.Search(ctx, query, []models.SearchKind{models.SearchKindCompany}, first, 0)
	if err != nil {
		return nil, err
	}

	rows, err := s.companyRepo.GetByIDs(ctx, hitIDs(hits))
	if err != nil {
		return nil, err
	}

	return reorderByRank(hits, rows, func(c *models.Company) uuid.UUID { return c.ID }), nil
}

// SuggestContacts searches only contacts and returns the full entity
// rows in ranked order.
func (s *searchService) SuggestContacts(ctx context.Context, query string, first int) ([]*models.Contact, error) {
	hits, err := s.Search(ctx, query, []models.SearchKind{models.SearchKindContact}, first, 0)
	if err != nil {
		return nil, err
	}

	rows, err := s.contactRepo.GetByIDs(ctx, hitIDs(hits))
	if err != nil {
		return nil, err
	}

	return reorderByRank(hits, rows, func(c *models.Contact) uuid.UUID { return c.ID }), nil
}

// SuggestDeals searches only deals and returns the full entity rows in
// ranked order.
func (s *searchService) SuggestDeals(ctx context.Context, query string, first int) ([]*models.Deal, error) {
	hits, err := s.Search(ctx, query, []models.SearchKind{models.SearchKindDeal}, first, 0)
	if err != nil {
		return nil, err
	}

	rows, err := s.dealRepo.GetByIDs(ctx, hitIDs(hits))
	if err != nil {
		return nil, err
	}

	return reorderByRank(hits, rows, func(d *models.Deal) uuid.UUID { return d.ID }), nil
}

// chooseStrategy picks the ranking strategy from the query text alone:
// queries of length two or more with at least one tokenizable term use
// the token-ranked strategy, everything else falls back to trigram
// similarity. The check never touches stored data.
func chooseStrategy(query string) repositories.SearchStrategy {
	if len([]rune(query)) >= 2 && len(tokenizeQuery(query)) > 0 {
		return repositories.StrategyToken
	}
	return repositories.StrategyFuzzy
}

// tokenizeQuery extracts alphanumeric terms, mirroring what the
// 'simple' text-search configuration would produce for the query.
func tokenizeQuery(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// resolveKinds deduplicates and drops unknown kinds; a nil filter
// resolves to all kinds.
func resolveKinds(kinds []models.SearchKind) []models.SearchKind {
	if kinds == nil {
		return models.AllSearchKinds()
	}

	seen := make(map[models.SearchKind]bool, len(kinds))
	var effective []models.SearchKind
	for _, k := range kinds {
		if !k.Valid() || seen[k] {
			continue
		}
		seen[k] = true
		effective = append(effective, k)
	}
	return effective
}

// hitHref builds the client navigation path for a hit.
func hitHref(kind models.SearchKind, id uuid.UUID) *string {
	var prefix string
	switch kind {
	case models.SearchKindCompany:
		prefix = "/companies/"
	case models.SearchKindContact:
		prefix = "/contacts/"
	case models.SearchKindDeal:
		prefix = "/deals/"
	default:
		return nil
	}

	href := prefix + id.String()
	return &href
}

func hitIDs(hits []models.SearchHit) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}

// reorderByRank re-orders bulk-fetched rows to match the ranked hit
// order; the bulk lookup itself gives no ordering guarantee.
func reorderByRank[T any](hits []models.SearchHit, rows []*T, id func(*T) uuid.UUID) []*T {
	byID := make(map[uuid.UUID]*T, len(rows))
	for _, row := range rows {
		byID[id(row)] = row
	}

	ordered := make([]*T, 0, len(hits))
	for _, h := range hits {
		if row, ok := byID[h.ID]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered
}
