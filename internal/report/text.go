package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"hostdrift/internal/domain"
	"hostdrift/internal/probe"
)

// WriteText prints the run summary and every host that is not OK
func WriteText(w io.Writer, r *domain.Report) error {
	s := r.Summary
	fmt.Fprintf(w, "Run %s (%s, mode %s)\n", r.ID, strings.ToUpper(string(r.Status)), r.Mode)
	if r.Partial {
		fmt.Fprintf(w, "Partial run: %d objects could not be fetched and are not counted as drift\n", s.Unfetched)
	}
	fmt.Fprintf(w, "%s hosts: %d  %s devices: %d  ok: %d  mismatch: %d  missing in %s: %d  missing in %s: %d\n",
		LiveLabel, s.LiveHosts, CMDBLabel, s.CMDBDevices, s.OK, s.Warning,
		CMDBLabel, s.MissingInCMDB, LiveLabel, s.MissingInLive)

	var drifted []domain.HostReport
	for _, h := range r.Hosts {
		if h.Severity != domain.SeverityOK {
			drifted = append(drifted, h)
		}
	}
	if len(drifted) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tSTATUS\tDETAILS")
	for _, h := range drifted {
		var details []string
		for _, v := range h.Mismatches() {
			if v.Detail != "" {
				details = append(details, v.Attribute+": "+v.Detail)
			} else {
				details = append(details, v.Attribute)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Identity, StatusLabel(h), strings.Join(details, "; "))
	}
	return tw.Flush()
}

// WriteProbeText prints failed checks and the totals
func WriteProbeText(w io.Writer, r *probe.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	failed := 0
	for _, res := range r.Results {
		if res.Passed {
			continue
		}
		if failed == 0 {
			fmt.Fprintln(tw, "CLIENT\tSERVER\tSERVICE\tPORT\tSTATUS\tDETAIL")
		}
		failed++
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%s\t%s\t%s\n",
			res.Client.Host, res.Server, res.Service, res.Port, strings.ToUpper(res.Proto), res.Status, res.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d checks: %d passed, %d failed\n", r.Summary.Total, r.Summary.Passed, r.Summary.Failed)
	return err
}
