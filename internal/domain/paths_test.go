package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRequest(t *testing.T, v Variant, offset int) ForecastRequest {
	t.Helper()
	req, err := NewForecastRequest(101, "20240601", 6, v, offset)
	require.NoError(t, err)
	return req
}

func TestLayout_Build_Assimilation(t *testing.T) {
	ps := DefaultLayout().Build(mustRequest(t, Assimilation, 1))

	require.Len(t, ps, 1)
	assert.Equal(t, []string{
		"national-water-model/nwm.20240601/analysis_assim/nwm.t06z.analysis_assim.channel_rt.tm01.conus.nc",
	}, ps[0])
}

func TestLayout_Build_ShortRange(t *testing.T) {
	ps := DefaultLayout().Build(mustRequest(t, ShortRange, 0))

	require.Len(t, ps, 1)
	require.Len(t, ps[0], 18)
	assert.Equal(t, "national-water-model/nwm.20240601/short_range/nwm.t06z.short_range.channel_rt.f001.conus.nc", ps[0][0])
	assert.Equal(t, "national-water-model/nwm.20240601/short_range/nwm.t06z.short_range.channel_rt.f018.conus.nc", ps[0][17])
}

func TestLayout_Build_MediumRange(t *testing.T) {
	ps := DefaultLayout().Build(mustRequest(t, MediumRangeEnsemble, 0))

	require.Len(t, ps, EnsembleMembers)
	for _, g := range ps {
		assert.Len(t, g, 68)
	}
	assert.Equal(t, 476, ps.Len())
	assert.Len(t, ps.Flatten(), 476)
	assert.Equal(t,
		"national-water-model/nwm.20240601/medium_range_mem1/nwm.t06z.medium_range.channel_rt_1.f003.conus.nc",
		ps[0][0])
	assert.Equal(t,
		"national-water-model/nwm.20240601/medium_range_mem7/nwm.t06z.medium_range.channel_rt_7.f204.conus.nc",
		ps[6][67])
}

func TestLayout_Build_CustomLayout(t *testing.T) {
	l := Layout{Bucket: "noaa-nwm-pds", ProductMarker: "channel_rt", Extension: "hawaii.nc"}
	ps := l.Build(mustRequest(t, ShortRange, 0))
	assert.Equal(t, "noaa-nwm-pds/nwm.20240601/short_range/nwm.t06z.short_range.channel_rt.f001.hawaii.nc", ps[0][0])
}

func TestParseKey_RoundTrip(t *testing.T) {
	for _, v := range []Variant{Assimilation, ShortRange, MediumRangeEnsemble} {
		req := mustRequest(t, v, 2)
		for gi, group := range DefaultLayout().Build(req) {
			for ki, key := range group {
				info, err := ParseKey(key)
				require.NoError(t, err, key)
				assert.Equal(t, v, info.Variant, key)
				assert.Equal(t, "20240601", info.Date, key)
				assert.Equal(t, 6, info.StartHour, key)
				switch v {
				case Assimilation:
					assert.Equal(t, 2, info.AssimOffset, key)
					assert.Zero(t, info.Lead, key)
				case ShortRange:
					assert.Equal(t, ki+1, info.Lead, key)
					assert.Zero(t, info.AssimOffset, key)
				case MediumRangeEnsemble:
					assert.Equal(t, gi+1, info.Member, key)
					assert.Equal(t, 3*(ki+1), info.Lead, key)
					assert.Zero(t, info.AssimOffset, key)
				}
			}
		}
	}
}

func TestLayout_Build_LeadsStrictlyIncrease(t *testing.T) {
	tests := []struct {
		variant   Variant
		first     int
		last      int
		step      int
		perMember int
	}{
		{ShortRange, 1, 18, 1, 18},
		{MediumRangeEnsemble, 3, 204, 3, 68},
	}
	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			for _, group := range DefaultLayout().Build(mustRequest(t, tt.variant, 0)) {
				require.Len(t, group, tt.perMember)
				prev := 0
				for _, key := range group {
					info, err := ParseKey(key)
					require.NoError(t, err, key)
					assert.Equal(t, prev+tt.step, info.Lead, key)
					prev = info.Lead
				}
				first, err := ParseKey(group[0])
				require.NoError(t, err)
				assert.Equal(t, tt.first, first.Lead)
				assert.Equal(t, tt.last, prev)
			}
		})
	}
}

func TestLayout_Build_AssimilationOffsets(t *testing.T) {
	for offset, want := range map[int]string{
		0: "national-water-model/nwm.20190802/analysis_assim/nwm.t00z.analysis_assim.channel_rt.tm00.conus.nc",
		2: "national-water-model/nwm.20190802/analysis_assim/nwm.t00z.analysis_assim.channel_rt.tm02.conus.nc",
	} {
		req, err := NewForecastRequest(5781632, "20190802", 0, Assimilation, offset)
		require.NoError(t, err)

		ps := DefaultLayout().Build(req)
		require.Len(t, ps, 1)
		assert.Equal(t, []string{want}, ps[0])

		info, err := ParseKey(want)
		require.NoError(t, err)
		assert.Equal(t, offset, info.AssimOffset)
	}
}

func TestKeyInfo_ValidTime(t *testing.T) {
	cycle := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

	info, err := ParseKey("nwm.20240601/analysis_assim/nwm.t06z.analysis_assim.channel_rt.tm02.conus.nc")
	require.NoError(t, err)
	assert.Equal(t, cycle.Add(-2*time.Hour), info.ValidTime())

	info, err = ParseKey("gs://national-water-model/nwm.20240601/medium_range_mem3/nwm.t06z.medium_range.channel_rt_3.f204.conus.nc")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Member)
	assert.Equal(t, 204, info.Lead)
	assert.Equal(t, cycle.Add(204*time.Hour), info.ValidTime())
}

func TestParseKey_Invalid(t *testing.T) {
	for _, key := range []string{
		"",
		"nwm.20240601/short_range/readme.txt",
		"nwm.20240601/short_range/nwm.t06z.long_range.channel_rt.f001.conus.nc",
		"nwm.20240601/medium_range/nwm.t06z.short_range.channel_rt.f003.conus.nc",
		"nwm.20240601/short_range/nwm.t06z.short_range.channel_rt.tm01.conus.nc",
		"nwm.20240601/medium_range_mem1/nwm.t06z.medium_range.channel_rt_1.tm03.conus.nc",
		"nwm.20240601/analysis_assim/nwm.t06z.analysis_assim.channel_rt.f001.conus.nc",
	} {
		_, err := ParseKey(key)
		assert.ErrorIs(t, err, ErrPathConstruction, key)
	}
}
