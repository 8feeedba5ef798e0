package kge

import (
	kge_predict "github.com/opst/gdsremote/cmd/gdsctl/subcommands/kge/predict"
	kge_train "github.com/opst/gdsremote/cmd/gdsctl/subcommands/kge/train"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	train, err := kge_train.New()
	if err != nil {
		return nil, err
	}
	predict, err := kge_predict.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Train knowledge graph embedding models and predict links on the compute cluster.",
		struct{}{},
		flarc.WithSubcommand("train", train),
		flarc.WithSubcommand("predict", predict),
	)
}
