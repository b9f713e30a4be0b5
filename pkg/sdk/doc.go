// Package fetchr embeds the image retrieval engine in a Go program.
//
// A query is expanded into a search directive by a language model, searched,
// and every candidate is checked for minimum size and reachability. When an
// attempt fails, the failure reason is fed back into the next expansion.
//
//	client, _ := fetchr.New(ctx,
//	    fetchr.WithGemini(os.Getenv("GEMINI_API_KEY")),
//	    fetchr.WithSerper(os.Getenv("SERPER_API_KEY")),
//	)
//	defer client.Close()
//
//	res, _ := client.Find(ctx, "BMW logo", 3)
//	if res.Found {
//	    fmt.Println(res.Image.URL)
//	}
//
// # Sessions
//
// FindAll runs several independent queries concurrently and returns their
// results in request order together with one merged decision log:
//
//	s, _ := client.FindAll(ctx, []string{"BMW logo", "Audi logo"}, 3, true)
//	fmt.Print(s.Log)
//
// # Feedback
//
// With WithRedis, ratings recorded via Rate are rendered into later
// expansion prompts so the model repeats what worked and avoids what did not.
//
// # Budget
//
// WithDailyTokenLimit caps language-model tokens per UTC day. Once the cap is
// reached, further expansions fail with ErrQuotaExceeded unless warnOnly is
// set. Usage reports what has been spent so far.
package fetchr
