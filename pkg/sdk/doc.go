// Package workflows is the public entry point for building document
// workflows: operators transform batches of documents, engines pull pages
// from a dataset, run operators over them and push the changes back, and a
// workflow reports the run's status to a job record.
//
// # Remote datasets
//
//	client, _ := workflows.New(ctx, workflows.WithValkey("localhost:6379", ""))
//	defer client.Close()
//
//	op := workflows.NewFunc("upper", func(ctx context.Context, docs workflows.List) (workflows.List, error) {
//	    for _, d := range docs {
//	        s, _ := d["title"].(string)
//	        d["title_upper"] = strings.ToUpper(s)
//	    }
//	    return docs, nil
//	}, workflows.WithFields([]string{"title"}, []string{"title_upper"}))
//
//	eng, _ := workflows.NewStable(client.Dataset("articles"), op,
//	    workflows.WithTransformChunkSize(50),
//	)
//	wf, _ := client.Workflow(eng, workflows.WithName("uppercase"))
//	err := wf.Run(ctx)
//
// # Local runs
//
// NewInMemory returns a client whose datasets and job records live in
// process memory, which is useful for tests and dry runs.
package workflows
