// Package audit records security-relevant events: logins, tenant
// switches, role changes, subscription changes, activation code use and
// public share access.
//
// Sinks implement Logger and can be combined:
//
//	db, _ := audit.NewDBLogger(sqlDB)
//	mq, _ := audit.DialAMQPLogger(amqpURL, audit.DefaultQueue)
//	sink := audit.NewAsyncLogger(audit.NewMultiLogger(db, mq, audit.NewLogSink(logger)), logger, 4, 1024, 5*time.Second)
//	defer sink.Close()
//
// Callers build events with NewEvent, which copies the request, user and
// tenant identifiers from the context, and record them with Emit. Emit
// never fails the calling operation.
package audit
