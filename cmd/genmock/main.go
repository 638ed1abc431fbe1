// Command genmock generates paired mock flight and weather CSV fixtures for
// the join test suites. It uses the actual domain package for time
// bucketing, so generated weather observations land on exactly the buckets
// the pipeline will look up.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -flights-out data/mock/flights.csv \
//	  -weather-out data/mock/weather.csv \
//	  -days 3
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/domain"
)

var baseDate = time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)

var stations = []string{"JFK", "DFW", "ORD", "CLT", "MIA", "PHX"}

var flightColumns = []string{
	"FL_DATE", "OP_UNIQUE_CARRIER", "OP_CARRIER_FL_NUM",
	"ORIGIN", "DEST", "DEP_TIME", "ARR_TIME", "YEAR", "MONTH",
}

var weatherColumns = []string{"station", "valid", "tmpf", "dwpf", "relh", "sknt", "vsby"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flightsOut := flag.String("flights-out", "", "output path for the flight CSV fixture")
	weatherOut := flag.String("weather-out", "", "output path for the weather CSV fixture")
	days := flag.Int("days", 3, "number of days of data to generate")
	flightsPerDay := flag.Int("flights-per-day", 40, "flights generated per day")
	flag.Parse()

	if *flightsOut == "" || *weatherOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -flights-out, -weather-out")
	}

	// Fixed seed keeps the fixtures reproducible run to run.
	rng := rand.New(rand.NewSource(42))

	flights := genFlights(rng, *days, *flightsPerDay)
	weather := genWeather(rng, *days)

	if err := writeCSV(*flightsOut, flightColumns, flights); err != nil {
		return fmt.Errorf("writing flights: %w", err)
	}
	if err := writeCSV(*weatherOut, weatherColumns, weather); err != nil {
		return fmt.Errorf("writing weather: %w", err)
	}

	log.Printf("flights: %d rows -> %s", len(flights), *flightsOut)
	log.Printf("weather: %d rows -> %s", len(weather), *weatherOut)
	return nil
}

// genFlights produces schedule rows with the usual messiness: clock times
// in both 4-digit and colon formats, the occasional blank ARR_TIME, and a
// few 2400 departures.
func genFlights(rng *rand.Rand, days, perDay int) []csvio.Row {
	rows := make([]csvio.Row, 0, days*perDay)
	for d := 0; d < days; d++ {
		date := baseDate.AddDate(0, 0, d)
		for i := 0; i < perDay; i++ {
			origin := stations[rng.Intn(len(stations))]
			dest := stations[rng.Intn(len(stations))]
			for dest == origin {
				dest = stations[rng.Intn(len(stations))]
			}

			depHour := 5 + rng.Intn(18)
			depMin := rng.Intn(60)
			arrHour := depHour + 1 + rng.Intn(4)
			arrMin := rng.Intn(60)

			depTime := fmt.Sprintf("%02d%02d", depHour, depMin)
			if rng.Intn(4) == 0 {
				depTime = fmt.Sprintf("%d:%02d", depHour, depMin)
			}

			arrTime := fmt.Sprintf("%02d%02d", arrHour%24, arrMin)
			switch {
			case rng.Intn(20) == 0:
				arrTime = ""
			case arrHour >= 24 && rng.Intn(3) == 0:
				arrTime = "2400"
			}

			rows = append(rows, csvio.Row{
				"FL_DATE":           date.Format("2006-01-02"),
				"OP_UNIQUE_CARRIER": "AA",
				"OP_CARRIER_FL_NUM": strconv.Itoa(100 + rng.Intn(900)),
				"ORIGIN":            origin,
				"DEST":              dest,
				"DEP_TIME":          depTime,
				"ARR_TIME":          arrTime,
				"YEAR":              strconv.Itoa(date.Year()),
				"MONTH":             strconv.Itoa(int(date.Month())),
			})
		}
	}
	return rows
}

// genWeather produces one observation per station per bucket, jittered a
// couple of minutes off the quarter hour the way real METAR exports are.
func genWeather(rng *rand.Rand, days int) []csvio.Row {
	var rows []csvio.Row
	for d := 0; d < days; d++ {
		date := baseDate.AddDate(0, 0, d)
		for bucket := 0; bucket < 24*4; bucket++ {
			ts := date.Add(time.Duration(bucket) * 15 * time.Minute)
			jittered := ts.Add(time.Duration(rng.Intn(5)-2) * time.Minute)
			if domain.Quantize(jittered) != ts {
				jittered = ts
			}

			for _, st := range stations {
				rows = append(rows, csvio.Row{
					"station": st,
					"valid":   jittered.Format("2006-01-02 15:04"),
					"tmpf":    strconv.FormatFloat(20+rng.Float64()*60, 'f', 1, 64),
					"dwpf":    strconv.FormatFloat(10+rng.Float64()*40, 'f', 1, 64),
					"relh":    strconv.FormatFloat(30+rng.Float64()*65, 'f', 1, 64),
					"sknt":    strconv.Itoa(rng.Intn(35)),
					"vsby":    strconv.FormatFloat(rng.Float64()*10, 'f', 2, 64),
				})
			}
		}
	}
	return rows
}

func writeCSV(path string, columns []string, rows []csvio.Row) error {
	w, err := csvio.Create(path, columns)
	if err != nil {
		return err
	}
	if err := w.WriteBatch(csvio.Batch{Columns: columns, Rows: rows}); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
