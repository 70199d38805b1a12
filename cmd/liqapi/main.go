package main

import (
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"liquidations-api/internal/config"
	"liquidations-api/internal/errorx"
	"liquidations-api/internal/handler"
	"liquidations-api/internal/logic"
	"liquidations-api/internal/svc"
	"liquidations-api/pkg/confkit"
)

var configFile = flag.String("f", "etc/liquidations-api.yaml", "the config file")

func main() {
	flag.Parse()
	confkit.LoadDotenvOnce()

	var c config.Config
	conf.MustLoad(*configFile, &c, conf.UseEnv())
	logx.Must(c.Validate())

	server := rest.MustNewServer(c.RestConf)
	defer server.Stop()

	ctx, err := svc.NewServiceContext(c)
	logx.Must(err)
	defer ctx.Close()

	httpx.SetErrorHandlerCtx(errorx.Handler)
	compress, err := handler.CompressionMiddleware()
	logx.Must(err)
	server.Use(compress)
	handler.RegisterHandlers(server, ctx)

	if ctx.CachePolicy.Warm.OnStartup {
		jobID, _ := ctx.Warmer.Start(logic.WarmTargets(ctx))
		logx.Infof("cache: startup warm started job=%s", jobID)
	}

	fmt.Printf("Starting server at %s:%d...\n", c.Host, c.Port)
	server.Start()
}
