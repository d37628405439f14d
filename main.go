package main

import (
	"fmt"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/formgate/formgate-api/api/handlers"
	"github.com/formgate/formgate-api/api/scheduler"
	"github.com/formgate/formgate-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database and router
		log.Fatal(err)
	}

	s := scheduler.NewScheduler(a.Sweeper)
	s.Start()
	defer s.Stop()

	zap.S().Infow("formgate-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
