package collect

import "sort"

// ClientSet maps a region to the service client bound to it. The region a
// client is stored under is the region every resource it discovers is
// attributed to.
//
// A ClientSet is read-only once built and safe for concurrent use.
type ClientSet[A any] struct {
	clients map[string]A
}

// NewClientSet copies clients into a new set.
func NewClientSet[A any](clients map[string]A) *ClientSet[A] {
	m := make(map[string]A, len(clients))
	for region, c := range clients {
		m[region] = c
	}
	return &ClientSet[A]{clients: m}
}

// BuildClientSet calls factory once per region. Duplicate regions are
// collapsed.
func BuildClientSet[A any](regions []string, factory func(region string) A) *ClientSet[A] {
	m := make(map[string]A, len(regions))
	for _, region := range regions {
		if _, ok := m[region]; ok {
			continue
		}
		m[region] = factory(region)
	}
	return &ClientSet[A]{clients: m}
}

// Regions returns the regions in the set, sorted.
func (s *ClientSet[A]) Regions() []string {
	regions := make([]string, 0, len(s.clients))
	for r := range s.clients {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}

// Client returns the client for region.
func (s *ClientSet[A]) Client(region string) (A, bool) {
	c, ok := s.clients[region]
	return c, ok
}

// Len is the number of regions in the set.
func (s *ClientSet[A]) Len() int { return len(s.clients) }
