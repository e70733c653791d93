// Command credkit-perfcheck compares two `go test -bench` outputs and fails
// when a tracked benchmark regresses past the threshold.
//
//	go test -run '^$' -bench . -count 5 . > new.txt
//	credkit-perfcheck -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// tracked lists the benchmarks and units that gate a change.
var tracked = map[string][]string{
	"BenchmarkResolveCurrentSubject":      {"ns/op", "allocs/op"},
	"BenchmarkResolveWithRevocationRedis": {"ns/op"},
	"BenchmarkResetCodeIssueConsume":      {"ns/op", "allocs/op"},
	"BenchmarkCheckRateLimit":             {"ns/op", "allocs/op"},
}

// samples maps benchmark name to unit to the values seen across -count runs.
type samples map[string]map[string][]float64

type comparison struct {
	benchmark string
	unit      string
	baseline  float64
	candidate float64
	delta     float64
}

func main() {
	baselinePath := flag.String("baseline", "", "path to baseline benchmark output")
	candidatePath := flag.String("candidate", "", "path to candidate benchmark output")
	threshold := flag.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Parse()

	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if *threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(*baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(*candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	results, problems := compare(baseline, candidate)
	fmt.Println("benchmark unit baseline candidate delta")
	for _, r := range results {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.unit, r.baseline, r.candidate, r.delta*100)
		if r.delta > *threshold {
			problems = append(problems, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)",
				r.benchmark, r.unit, r.delta*100, *threshold*100))
		}
	}

	if len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "performance check failed:")
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		os.Exit(1)
	}
}

// compare returns one row per tracked benchmark and unit, in name order, and
// a problem for every pair that lacks usable samples.
func compare(baseline, candidate samples) ([]comparison, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		results  []comparison
		problems []string
	)
	for _, name := range names {
		for _, unit := range tracked[name] {
			base := median(baseline[name][unit])
			cand := median(candidate[name][unit])
			switch {
			case len(baseline[name][unit]) == 0 || len(candidate[name][unit]) == 0:
				problems = append(problems, fmt.Sprintf("missing samples for %s %s", name, unit))
			case base <= 0:
				problems = append(problems, fmt.Sprintf("invalid baseline median for %s %s", name, unit))
			default:
				results = append(results, comparison{
					benchmark: name,
					unit:      unit,
					baseline:  base,
					candidate: cand,
					delta:     (cand - base) / base,
				})
			}
		}
	}
	return results, problems
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// parse reads benchmark lines of the form
//
//	BenchmarkName-8   1000   1234 ns/op   56 B/op   2 allocs/op
func parse(r io.Reader) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := stripProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		units, ok := out[name]
		if !ok {
			units = map[string][]float64{}
			out[name] = units
		}
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			units[fields[i+1]] = append(units[fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

// stripProcs drops the -GOMAXPROCS suffix go test appends to names.
func stripProcs(name string) string {
	idx := strings.LastIndexByte(name, '-')
	if idx <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[idx+1:]); err != nil {
		return name
	}
	return name[:idx]
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
