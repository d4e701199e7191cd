package influx

import (
	"github.com/spf13/cobra"
	"github.com/stockpile-io/stockpile/cmd/stockpile/stockpile"
)

func init() {
	influxCmd.PersistentFlags().StringVarP(&influxDbUrl, "url", "", "http://localhost:8086", "InfluxDB URL")
	influxCmd.PersistentFlags().StringVarP(&influxDbToken, "token", "", "", "InfluxDB auth token")
	influxCmd.PersistentFlags().StringVarP(&influxDbOrg, "org", "", "", "InfluxDB organization")
	influxCmd.PersistentFlags().StringVarP(&influxDbBucket, "bucket", "", "stockpile", "InfluxDB bucket")
	stockpile.RootCmd.AddCommand(influxCmd)
}

var influxCmd = &cobra.Command{
	Use:   "influx",
	Short: "Manage engine metrics in InfluxDB",
}
var influxDbUrl string
var influxDbToken string
var influxDbOrg string
var influxDbBucket string
