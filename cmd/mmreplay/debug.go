package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/ugparu/mmstream/format/rtp"
	"github.com/ugparu/mmstream/session"
	"github.com/ugparu/mmstream/utils/logger"
)

const readHeaderTimeout = 5 * time.Second

// report is the JSON document served on /stats and printed after a replay.
type report struct {
	RTP      rtp.Stats     `json:"rtp"`
	Session  session.Stats `json:"session"`
	Renderer rendererStats `json:"renderer"`
	Detached bool          `json:"detached"`
}

func newReport(sess *session.Session, recv *rtp.Receiver, rend *nullRenderer) report {
	return report{
		RTP:      recv.Stats(),
		Session:  sess.Stats(),
		Renderer: rend.Stats(),
		Detached: sess.Detached(),
	}
}

type debugServer struct {
	*http.Server
}

func newDebugRouter(sess *session.Session, recv *rtp.Receiver, rend *nullRenderer, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	pprof.Register(router)

	router.GET("/health", func(c *gin.Context) {
		if sess.Detached() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "detached"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/stats", func(c *gin.Context) {
		log.Trace("DEBUG_SERVER", "Stats request")
		c.JSON(http.StatusOK, newReport(sess, recv, rend))
	})
	return router
}

func newDebugServer(addr string, sess *session.Session, recv *rtp.Receiver, rend *nullRenderer, log *logger.Logger) *debugServer {
	return &debugServer{
		Server: &http.Server{
			Addr:              addr,
			Handler:           newDebugRouter(sess, recv, rend, log),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

func (s *debugServer) String() string {
	return "DEBUG_SERVER"
}
