package main

import (
	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
	"github.com/stockpile-io/stockpile/cmd/stockpile/stockpile"
	_ "github.com/stockpile-io/stockpile/cmd/stockpile/demo"
	_ "github.com/stockpile-io/stockpile/cmd/stockpile/influx"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

func init() {
	pfxlog.GlobalInit(logrus.InfoLevel, pfxlog.DefaultOptions().SetTrimPrefix("github.com/stockpile-io/"))
}

func main() {
	defer logrus.Debugf("finished")

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			log.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n", buf[:stacklen])
		}
	}()

	if err := stockpile.RootCmd.Execute(); err != nil {
		logrus.Fatalf("error (%v)", err)
	}
}
