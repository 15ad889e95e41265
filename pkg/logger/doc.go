// Package logger builds the application's *slog.Logger.
//
// New takes functional options for format, level, static attributes and
// context extractors. Extractors run on every record, so request-scoped
// values such as the request ID show up without threading a logger
// through each call.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "diary"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "subscription downgraded",
//	    logger.UserID(userID),
//	    logger.PlanID(plan.ID),
//	)
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Error, Errors and the ID helpers return an empty slog.Attr for nil input,
// which slog drops.
package logger
