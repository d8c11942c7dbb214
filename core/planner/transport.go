package planner

import (
	"sort"

	"github.com/kilianp07/showplan/core/timegrid"
)

// maxBatchRaises bounds how far a batch start is pushed to fit every member.
const maxBatchRaises = 48

func (p *plan) transportEnabled() bool {
	in := p.in
	return (in.ArrivalTaskTemplateName != "" || in.DepartureTaskTemplateName != "") &&
		p.w.arrivalDeparture > 0 && in.VanCapacity > 0
}

// batchTransport groups pending arrival tasks into vans sharing a start and
// departure tasks into vans sharing an end.
func (p *plan) batchTransport() {
	if !p.transportEnabled() {
		return
	}
	var arrivals, departures []*taskInfo
	for _, ti := range p.order {
		if ti.Status != StatusPending {
			continue
		}
		switch {
		case ti.arrival:
			arrivals = append(arrivals, ti)
		case ti.departure:
			departures = append(departures, ti)
		}
	}

	if size := min(p.in.VanCapacity, p.in.ArrivalGroupingTarget); size > 0 && len(arrivals) > 0 {
		sort.SliceStable(arrivals, func(i, j int) bool {
			return p.availStart(arrivals[i].contestant) < p.availStart(arrivals[j].contestant)
		})
		for lo := 0; lo < len(arrivals); lo += size {
			batch := arrivals[lo:min(lo+size, len(arrivals))]
			start := 0
			for _, ti := range batch {
				start = max(start, p.availStart(ti.contestant))
			}
			start = timegrid.SnapUp(start)
			for step := 0; step < maxBatchRaises && !p.batchFits(batch, start); step++ {
				start += timegrid.Grid
			}
			for _, ti := range batch {
				p.forcedStart[ti.ID] = start
			}
		}
	}

	if size := min(p.in.VanCapacity, p.in.DepartureGroupingTarget); size > 0 && len(departures) > 0 {
		sort.SliceStable(departures, func(i, j int) bool {
			return p.availEnd(departures[i].contestant) > p.availEnd(departures[j].contestant)
		})
		for lo := 0; lo < len(departures); lo += size {
			batch := departures[lo:min(lo+size, len(departures))]
			end := p.day.End
			for _, ti := range batch {
				end = min(end, p.availEnd(ti.contestant))
			}
			end = timegrid.SnapDown(end)
			for _, ti := range batch {
				p.forcedEnd[ti.ID] = end
			}
		}
	}
}

func (p *plan) batchFits(batch []*taskInfo, start int) bool {
	for _, ti := range batch {
		if start+ti.dur > p.availEnd(ti.contestant) {
			return false
		}
	}
	return true
}
