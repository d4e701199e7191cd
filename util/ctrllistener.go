package util

import (
	"bufio"
	"fmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ctrlListeners = make(map[string]*CtrlListener)
var ctrlMutex sync.Mutex

// CtrlListener accepts line-oriented operator commands on a unix socket and
// dispatches them to registered callbacks. Used for poking a running engine
// (flush now, snapshot now, dump stats) without a management API.
type CtrlListener struct {
	listener  net.Listener
	callbacks map[string][]func(string) error
	running   bool
}

func GetCtrlListener(root, id string) (cl *CtrlListener, err error) {
	ctrlMutex.Lock()
	defer ctrlMutex.Unlock()

	cl, found := ctrlListeners[root+id]
	if found {
		return cl, nil
	}

	cl = &CtrlListener{callbacks: make(map[string][]func(string) error)}
	address := filepath.Join(root, fmt.Sprintf("%s.%d.sock", id, os.Getpid()))
	unixAddress, err := net.ResolveUnixAddr("unix", address)
	if err != nil {
		return nil, errors.Wrap(err, "error resolving unix address")
	}
	cl.listener, err = net.ListenUnix("unix", unixAddress)
	if err != nil {
		return nil, errors.Wrap(err, "error listening")
	}
	ctrlListeners[root+id] = cl
	return cl, nil
}

func (self *CtrlListener) AddCallback(keyword string, f func(string) error) {
	self.callbacks[keyword] = append(self.callbacks[keyword], f)
}

func (self *CtrlListener) Start() {
	ctrlMutex.Lock()
	defer ctrlMutex.Unlock()

	if !self.running {
		self.running = true
		go self.run()
	}
}

func (self *CtrlListener) run() {
	logrus.Infof("[%s] started", self.listener.Addr())
	defer logrus.Infof("[%s] exited", self.listener.Addr())

	for {
		conn, err := self.listener.Accept()
		if err == nil {
			go self.handle(conn)
		} else if err == io.EOF {
			return
		} else {
			logrus.Errorf("error accepting ctrl connection (%v)", err)
			return
		}
	}
}

func (self *CtrlListener) handle(conn net.Conn) {
	logrus.Infof("new connection for [%s]", conn.LocalAddr())
	defer logrus.Infof("ended connection for [%s]", conn.LocalAddr())

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return
		} else if err != nil {
			logrus.Errorf("error reading (%v)", err)
			return
		}

		line = strings.TrimSpace(line)
		tokens := strings.Split(line, " ")
		fs, found := self.callbacks[tokens[0]]
		if !found {
			logrus.Errorf("no callback for [%s]", line)
			self.respond(conn, "syntax error?\n")
			continue
		}

		var fErr error
		for _, f := range fs {
			if fErr = f(line); fErr != nil {
				break
			}
		}
		if fErr == nil {
			self.respond(conn, "ok\n")
		} else {
			logrus.Errorf("error executing callback (%v)", fErr)
			self.respond(conn, fmt.Sprintf("error (%s)\n", fErr))
		}
	}
}

func (self *CtrlListener) respond(conn net.Conn, msg string) {
	if _, err := conn.Write([]byte(msg)); err != nil {
		logrus.Errorf("error responding (%v)", err)
	}
}
