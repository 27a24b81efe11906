package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	shortRangeLeads   = 18
	mediumRangeStep   = 3
	mediumRangeMaxLag = 204
)

// Layout holds the bucket and filename selectors that shape forecast keys.
type Layout struct {
	Bucket        string // storage container, first key segment
	ProductMarker string // file family, e.g. "channel_rt"
	Extension     string // domain suffix, e.g. "conus.nc"
}

// DefaultLayout returns the layout of the public Google Cloud mirror.
func DefaultLayout() Layout {
	return Layout{
		Bucket:        "national-water-model",
		ProductMarker: "channel_rt",
		Extension:     "conus.nc",
	}
}

// PathSet is an ordered list of key groups. Single-run products have exactly
// one group; the medium range ensemble has one group per member. Keys within a
// group ascend by lead time.
type PathSet [][]string

// Flatten returns every key in group order.
func (ps PathSet) Flatten() []string {
	out := make([]string, 0, ps.Len())
	for _, g := range ps {
		out = append(out, g...)
	}
	return out
}

// Len returns the total number of keys.
func (ps PathSet) Len() int {
	n := 0
	for _, g := range ps {
		n += len(g)
	}
	return n
}

// Build returns the keys backing a request.
func (l Layout) Build(req ForecastRequest) PathSet {
	switch req.Variant {
	case Assimilation:
		return PathSet{{l.assimKey(req)}}
	case ShortRange:
		return PathSet{l.shortRangeKeys(req)}
	case MediumRangeEnsemble:
		ps := make(PathSet, 0, EnsembleMembers)
		for m := 1; m <= EnsembleMembers; m++ {
			ps = append(ps, l.MemberKeys(req, m))
		}
		return ps
	default:
		return nil
	}
}

func (l Layout) assimKey(req ForecastRequest) string {
	p := Assimilation.String()
	return fmt.Sprintf("%s/nwm.%s/%s/nwm.t%sz.%s.%s.tm0%d.%s",
		l.Bucket, req.Date, p, req.StartHourString(), p, l.ProductMarker, req.AssimOffset, l.Extension)
}

func (l Layout) shortRangeKeys(req ForecastRequest) []string {
	p := ShortRange.String()
	keys := make([]string, 0, shortRangeLeads)
	for lead := 1; lead <= shortRangeLeads; lead++ {
		keys = append(keys, fmt.Sprintf("%s/nwm.%s/%s/nwm.t%sz.%s.%s.f%s.%s",
			l.Bucket, req.Date, p, req.StartHourString(), p, l.ProductMarker, formatLead(lead), l.Extension))
	}
	return keys
}

// MemberKeys returns the 68 lead-time keys of one medium range member (1-7).
func (l Layout) MemberKeys(req ForecastRequest, member int) []string {
	p := MediumRangeEnsemble.String()
	keys := make([]string, 0, mediumRangeMaxLag/mediumRangeStep)
	for lead := mediumRangeStep; lead <= mediumRangeMaxLag; lead += mediumRangeStep {
		keys = append(keys, fmt.Sprintf("%s/nwm.%s/%s_mem%d/nwm.t%sz.%s.%s_%d.f%s.%s",
			l.Bucket, req.Date, p, member, req.StartHourString(), p, l.ProductMarker, member, formatLead(lead), l.Extension))
	}
	return keys
}

// keyRe matches any key produced by Layout.Build, with or without a scheme
// and bucket prefix.
var keyRe = regexp.MustCompile(
	`(?:^|/)nwm\.(?P<date>\d{8})/(?P<folder>[a-z_]+?)(?:_mem(?P<folderMember>\d+))?/` +
		`nwm\.t(?P<hour>\d{2})z\.(?P<product>[a-z_]+?)\.(?P<marker>[a-z_]+?)(?:_(?P<member>\d+))?\.` +
		`(?P<step>tm|f)(?P<lead>\d+)\.(?P<ext>.+)$`)

// KeyInfo is the request information encoded in a forecast key.
type KeyInfo struct {
	Date        string
	StartHour   int
	Variant     Variant
	Member      int // 0 unless medium range
	Lead        int // hours after the cycle; 0 for assimilation
	AssimOffset int
}

// ValidTime returns the time the key's data is valid for.
func (k KeyInfo) ValidTime() time.Time {
	d, err := time.Parse(dateLayout, k.Date)
	if err != nil {
		return time.Time{}
	}
	cycle := d.Add(time.Duration(k.StartHour) * time.Hour)
	if k.Variant == Assimilation {
		return cycle.Add(-time.Duration(k.AssimOffset) * time.Hour)
	}
	return cycle.Add(time.Duration(k.Lead) * time.Hour)
}

// ParseKey recovers the request fields from a forecast key.
func ParseKey(key string) (KeyInfo, error) {
	m := keyRe.FindStringSubmatch(key)
	if m == nil {
		return KeyInfo{}, fmt.Errorf("%w: unrecognised key %q", ErrPathConstruction, key)
	}

	var (
		info              KeyInfo
		folder, product   string
		step, lead        string
		member, fldMember string
	)
	for i, name := range keyRe.SubexpNames() {
		switch name {
		case "date":
			info.Date = m[i]
		case "hour":
			info.StartHour, _ = strconv.Atoi(m[i])
		case "folder":
			folder = m[i]
		case "folderMember":
			fldMember = m[i]
		case "product":
			product = m[i]
		case "member":
			member = m[i]
		case "step":
			step = m[i]
		case "lead":
			lead = m[i]
		}
	}

	v, err := ParseVariant(product)
	if err != nil {
		return KeyInfo{}, err
	}
	if !strings.HasPrefix(folder, product) {
		return KeyInfo{}, fmt.Errorf("%w: folder %q does not match product %q in %q", ErrPathConstruction, folder, product, key)
	}
	info.Variant = v
	if (step == "tm") != (v == Assimilation) {
		return KeyInfo{}, fmt.Errorf("%w: step %q does not belong to %s in %q", ErrPathConstruction, step, v, key)
	}

	n, err := strconv.Atoi(lead)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("%w: lead %q in %q", ErrPathConstruction, lead, key)
	}
	if step == "tm" {
		info.AssimOffset = n
	} else {
		info.Lead = n
	}

	if v == MediumRangeEnsemble {
		if member == "" {
			member = fldMember
		}
		info.Member, err = strconv.Atoi(member)
		if err != nil {
			return KeyInfo{}, fmt.Errorf("%w: missing ensemble member in %q", ErrPathConstruction, key)
		}
	}
	return info, nil
}
