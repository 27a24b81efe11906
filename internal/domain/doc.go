// Package domain models National Water Model (NWM) forecast and reanalysis
// requests, the object keys that back them, and the streamflow time series
// assembled from them.
//
// # Data Source
//
// NWM output is published hourly as one NetCDF file per product, cycle and lead
// time. The public mirrors are the Google Cloud bucket "national-water-model"
// and the AWS bucket "noaa-nwm-pds"; both use the same key layout:
//
//	nwm.<YYYYMMDD>/<folder>/nwm.t<HH>z.<product>.<marker>.<step>.<ext>
//
// where <HH> is the cycle (issuance) hour, <marker> selects the file family
// ("channel_rt" holds per-reach streamflow) and <ext> is the domain suffix
// ("conus.nc").
//
// # Products
//
// Analysis-assimilation ("analysis_assim"):
//
//	One file per look-back step, "tm00" .. "tm02". tm00 is valid at the cycle
//	hour and is used as the forecast initial condition (the anchor).
//
// Short range ("short_range"):
//
//	18 hourly lead times, "f001" .. "f018".
//
// Medium range ensemble ("medium_range_mem<N>"):
//
//	7 members, each with 68 lead times every 3 hours, "f003" .. "f204".
//	Member files carry the member number in the marker: "channel_rt_<N>".
//
// # Reanalysis
//
// Retrospective runs are hourly CHRTOUT files named by valid time:
//
//	nwm-archive:             <YYYY>/<YYYYMMDDHH>00.CHRTOUT_DOMAIN1.comp
//	national-water-model-v2: <analysis>/<YYYY>/<YYYYMMDDHHMM>.CHRTOUT_DOMAIN1.comp
//
// The archive bucket is listed and filtered by timestamp; the v2 bucket keys
// are constructed directly.
//
// # Series
//
// Flows are cubic meters per second. Fill values decode to NaN and stay in the
// series so an all-missing reach is distinguishable from an unknown reach
// ([ErrReachNotFound]).
package domain
