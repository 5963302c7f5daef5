package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"heatsim/internal/model"
)

type record struct {
	sensorID string
	value    float64
	ts       float64 // unix epoch seconds
}

// priceResponse is the Energy-Charts /price payload: parallel arrays of
// interval starts and day-ahead prices in <currency>/MWh.
type priceResponse struct {
	UnixSeconds []int64   `json:"unix_seconds"`
	Price       []float64 `json:"price"`
	Unit        string    `json:"unit"`
}

func main() {
	area := flag.String("area", "FI", "bidding zone (Energy-Charts bzn parameter)")
	window := flag.Duration("window", 24*time.Hour, "forward window to keep")
	output := flag.String("output", "input/prices.csv", "output CSV path")
	baseURL := flag.String("url", "https://api.energy-charts.info", "Energy-Charts base URL")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	now := time.Now().UTC()

	points, err := fetchPrices(client, *baseURL, *area, now, now.Add(*window))
	if err != nil {
		log.Fatalf("fetching prices: %v", err)
	}
	if len(points) == 0 {
		log.Fatalf("no prices published yet for %s in [%s, %s)", *area,
			now.Format(time.RFC3339), now.Add(*window).Format(time.RFC3339))
	}

	existing := loadExistingRecords(*output)
	merged := mergeRecords(existing, points)

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}
	if err := writeCSV(*output, merged); err != nil {
		log.Fatalf("writing CSV: %v", err)
	}

	log.Printf("wrote %d records to %s (was %d, fetched %d new)", len(merged), *output, len(existing), len(points))
}

// fetchPrices downloads day-ahead prices for the zone and returns records
// whose interval starts within [from, to), converted to per-kWh.
func fetchPrices(client *http.Client, baseURL, area string, from, to time.Time) ([]record, error) {
	// The API returns whole publication days, so ask for both days the
	// window can touch.
	url := fmt.Sprintf("%s/price?bzn=%s&start=%s&end=%s",
		baseURL, area,
		from.Format("2006-01-02"),
		to.AddDate(0, 0, 1).Format("2006-01-02"),
	)

	var body []byte
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		body, err = doRequest(client, url)
		if err == nil {
			break
		}
		if isRetryable(err) {
			wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			log.Printf("  retrying in %s: %v", wait, err)
			time.Sleep(wait)
			continue
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("after 5 attempts: %w", err)
	}

	var resp priceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(resp.UnixSeconds) != len(resp.Price) {
		return nil, fmt.Errorf("mismatched arrays: %d timestamps, %d prices", len(resp.UnixSeconds), len(resp.Price))
	}

	sensorID := model.SensorHomeAssistantID[model.SensorEnergyPrice]
	var records []record
	for i, ts := range resp.UnixSeconds {
		start := time.Unix(ts, 0).UTC()
		if start.Before(from) || !start.Before(to) {
			continue
		}
		records = append(records, record{
			sensorID: sensorID,
			value:    resp.Price[i] / 1000, // EUR/MWh -> EUR/kWh
			ts:       float64(ts),
		})
	}
	return records, nil
}

type apiError struct {
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.statusCode, e.message)
}

func isRetryable(err error) bool {
	ae, ok := err.(*apiError)
	if !ok {
		return true // network errors are retryable
	}
	return ae.statusCode == 429 || ae.statusCode >= 500
}

func doRequest(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, &apiError{statusCode: resp.StatusCode, message: string(body)}
	}
	return body, nil
}

func loadExistingRecords(path string) []record {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	cr := csv.NewReader(f)
	if _, err := cr.Read(); err != nil {
		return nil
	}

	var records []record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(row) < 3 {
			continue
		}

		value, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			continue
		}
		ts, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			continue
		}

		records = append(records, record{sensorID: row[0], value: value, ts: ts})
	}
	return records
}

// mergeRecords combines existing and new records, deduplicating on
// (sensorID, timestamp). New records win so revised prices replace stale ones.
func mergeRecords(existing, fetched []record) []record {
	type key struct {
		sensorID string
		ts       float64
	}
	seen := make(map[key]record, len(existing)+len(fetched))
	for _, r := range existing {
		seen[key{r.sensorID, r.ts}] = r
	}
	for _, r := range fetched {
		seen[key{r.sensorID, r.ts}] = r
	}

	merged := make([]record, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].ts != merged[j].ts {
			return merged[i].ts < merged[j].ts
		}
		return merged[i].sensorID < merged[j].sensorID
	})
	return merged
}

func writeCSV(path string, records []record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sensor_id", "value", "updated_ts"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.sensorID,
			strconv.FormatFloat(r.value, 'f', -1, 64),
			strconv.FormatFloat(r.ts, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
