package influx

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stockpile-io/stockpile/util"
)

func init() {
	influxCmd.AddCommand(influxLoadCmd)
}

var influxLoadCmd = &cobra.Command{
	Use:   "load <metricsRoot>",
	Short: "Load metrics sample data into the analyzer",
	Args:  cobra.ExactArgs(1),
	Run:   influxLoad,
}

func influxLoad(_ *cobra.Command, args []string) {
	instances, err := util.DiscoverMetrics(args[0])
	if err != nil {
		logrus.Fatalf("error discovering metrics under [%s] (%v)", args[0], err)
	}

	client := influxdb2.NewClient(influxDbUrl, influxDbToken)
	writeApi := client.WriteAPI(influxDbOrg, influxDbBucket)

	for root, metricsId := range instances {
		for _, dataset := range datasets {
			data, err := readDataset(filepath.Join(root, dataset+".csv"))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				logrus.Fatalf("error reading dataset [%s] for [%s] (%v)", dataset, metricsId.Id, err)
			}
			for ts, v := range data {
				t := time.Unix(0, ts)
				p := influxdb2.NewPoint(dataset, nil, map[string]interface{}{"v": v}, t).AddTag("instance", metricsId.Id)
				writeApi.WritePoint(p)
			}
			logrus.Infof("wrote %d points for instance [%s] dataset [%s]", len(data), metricsId.Id, dataset)
		}
	}

	client.Close()
}

func readDataset(path string) (data map[int64]int64, err error) {
	var raw []byte
	raw, err = os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = make(map[int64]int64)
	scanner := bufio.NewScanner(bytes.NewBuffer(raw))
	for scanner.Scan() {
		line := scanner.Text()
		tokens := strings.Split(line, ",")
		ts, err := strconv.ParseInt(tokens[0], 10, 64)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(tokens[1], 10, 64)
		if err != nil {
			return nil, err
		}
		data[ts] = v
	}

	return
}

var datasets = []string{
	"loads",
	"load_errors",
	"exhaustions",
	"issued",
	"confirmed",
	"auto_confirmed",
	"unknown_claims",
	"flushed",
	"flush_errors",
	"reserved",
	"conflicts",
	"expirations",
	"released",
	"inv_refreshes",
	"inv_hits",
	"taken",
	"take_failures",
	"snapshots",
	"snapshot_errors",
}
