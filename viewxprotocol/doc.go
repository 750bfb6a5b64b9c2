// Package viewxprotocol provides a Go client for the iViewX remote command
// protocol, correlating replies with the commands that caused them.
//
// # Overview
//
// The tracker answers most commands with a datagram that starts with the
// same keyword. Replies carry no request id, so a reply is matched to the
// oldest outstanding command with its keyword. Datagrams that match nothing
// (streamed ET_SPL samples, ET_CHG and ET_FIN notifications, late replies)
// are events.
//
// # Basic Usage
//
//	client := viewxprotocol.NewClient(viewxprotocol.WithLogger(logger))
//	if err := client.Connect("192.168.1.10", viewxprotocol.DefaultPort); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	rate, err := client.SampleRate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("tracking at %d Hz\n", rate)
//
// # Asynchronous Replies
//
// Go registers a continuation instead of blocking:
//
//	cmd := viewxprotocol.NewAcceptCalibrationPointCommand()
//	p, err := client.Go(cmd, func(reply viewxprotocol.Reply, err error) {
//	    if err != nil {
//	        log.Printf("accept failed: %v", err)
//	        return
//	    }
//	    log.Printf("next point %s", reply.Fields[0])
//	})
//
// The returned *Pending is also a future: Done, Wait, Result and Cancel.
// No timeout is applied by default; bound waits with a context (Call) or
// cancel the Pending.
//
// # Event Handling
//
//	client.SetEventHandler(func(event viewxprotocol.Reply) {
//	    if event.Keyword == viewxprotocol.KeywordSample {
//	        // event.Fields holds the sample in the ET_FRM format
//	    }
//	})
//
// # Lower Level
//
// Channel and CorrelationTable can be used directly with any Transport,
// which is how the tests drive the engine without sockets.
//
// # Parsing Commands
//
//	parser := viewxprotocol.NewCommandParser()
//	cmd, err := parser.Parse(`ET_FRM "%TS %SX %SY"`)
package viewxprotocol
