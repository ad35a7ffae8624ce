// Package logger es el logger zap compartido por el nodo y el configtool.
//
// Hay una sola instancia de proceso (Init la arma una vez en main). Cada
// componente pide la suya con Named("protocol"), Named("http"), etc. y los
// handlers HTTP propagan un logger con request_id vía ToContext/From.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "clusterconf-node"})
//	defer func() { _ = logger.Sync() }()
//
//	log := logger.From(ctx)
//	log.Info("change committed", logger.ChangeID(id), logger.Version(v))
//
// En dev se escribe en consola con colores; en prod, JSON.
package logger
