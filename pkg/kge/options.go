package kge

import (
	"errors"
	"fmt"
)

// ErrInvalidOption is returned by TrainOptions.Validate.
var ErrInvalidOption = errors.New("invalid training option")

// Checkpoint to resume training from.
type Checkpoint struct {
	Name  string
	Epoch int
}

// TrainOptions are hyperparameters of KGE training.
//
// Start from DefaultTrainOptions and set NumEpochs and EmbeddingDimension.
type TrainOptions struct {
	NumEpochs          int
	EmbeddingDimension int

	// EpochsPerCheckpoint. 0 means max(NumEpochs/10, 1).
	EpochsPerCheckpoint float64

	LoadFromCheckpoint *Checkpoint

	SplitRatios map[string]float64

	ScoringFunction string
	PNorm           float64
	BatchSize       int
	TestBatchSize   int

	Optimizer       string
	OptimizerKwargs map[string]any

	LRScheduler       string
	LRSchedulerKwargs map[string]any

	LossFunction       string
	LossFunctionKwargs map[string]any

	NegativeSamplingSize    int
	UseNodeTypeAwareSampler bool
	KValue                  int
	DoValidation            bool
	DoTest                  bool
	FilteredMetrics         bool
	EpochsPerVal            int
	InnerNorm               bool

	// InitBound. nil is not sent.
	InitBound *float64
}

// DefaultTrainOptions returns options with default hyperparameters.
func DefaultTrainOptions(numEpochs, embeddingDimension int) TrainOptions {
	return TrainOptions{
		NumEpochs:               numEpochs,
		EmbeddingDimension:      embeddingDimension,
		SplitRatios:             map[string]float64{"TRAIN": 0.8, "TEST": 0.2},
		ScoringFunction:         "transe",
		PNorm:                   1.0,
		BatchSize:               512,
		TestBatchSize:           512,
		Optimizer:               "adam",
		OptimizerKwargs:         map[string]any{"lr": 0.01, "weight_decay": 0.0005},
		LRScheduler:             "ConstantLR",
		LRSchedulerKwargs:       map[string]any{"factor": 1, "total_iters": 1000},
		LossFunction:            "MarginRanking",
		LossFunctionKwargs:      map[string]any{"margin": 1.0, "adversarial_temperature": 1.0, "gamma": 20.0},
		NegativeSamplingSize:    1,
		UseNodeTypeAwareSampler: false,
		KValue:                  10,
		DoValidation:            true,
		DoTest:                  true,
		FilteredMetrics:         false,
		EpochsPerVal:            50,
		InnerNorm:               true,
	}
}

func (o TrainOptions) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"num_epochs", o.NumEpochs},
		{"embedding_dimension", o.EmbeddingDimension},
		{"batch_size", o.BatchSize},
		{"test_batch_size", o.TestBatchSize},
		{"negative_sampling_size", o.NegativeSamplingSize},
		{"k_value", o.KValue},
		{"epochs_per_val", o.EpochsPerVal},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s should be positive (got %d)", ErrInvalidOption, p.name, p.value)
		}
	}
	if o.EpochsPerCheckpoint < 0 {
		return fmt.Errorf("%w: epochs_per_checkpoint should not be negative", ErrInvalidOption)
	}
	if o.PNorm <= 0 {
		return fmt.Errorf("%w: p_norm should be positive", ErrInvalidOption)
	}
	for _, s := range []struct{ name, value string }{
		{"scoring_function", o.ScoringFunction},
		{"optimizer", o.Optimizer},
		{"lr_scheduler", o.LRScheduler},
		{"loss_function", o.LossFunction},
	} {
		if s.value == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidOption, s.name)
		}
	}
	if len(o.SplitRatios) == 0 {
		return fmt.Errorf("%w: split_ratios is empty", ErrInvalidOption)
	}
	for k, r := range o.SplitRatios {
		if r < 0 || 1 < r {
			return fmt.Errorf("%w: split_ratios[%s] should be in [0, 1] (got %f)", ErrInvalidOption, k, r)
		}
	}
	if c := o.LoadFromCheckpoint; c != nil && (c.Name == "" || c.Epoch < 0) {
		return fmt.Errorf("%w: load_from_checkpoint is malformed: %+v", ErrInvalidOption, *c)
	}
	return nil
}

// epochsPerCheckpoint resolves the default of EpochsPerCheckpoint.
func (o TrainOptions) epochsPerCheckpoint() float64 {
	if 0 < o.EpochsPerCheckpoint {
		return o.EpochsPerCheckpoint
	}
	return max(float64(o.NumEpochs)/10, 1)
}

// TaskConfig renders options as the task configuration of a training job.
func (o TrainOptions) TaskConfig() map[string]any {
	conf := map[string]any{
		"num_epochs":                  o.NumEpochs,
		"embedding_dimension":         o.EmbeddingDimension,
		"epochs_per_checkpoint":       o.epochsPerCheckpoint(),
		"split_ratios":                o.SplitRatios,
		"scoring_function":            o.ScoringFunction,
		"p_norm":                      o.PNorm,
		"batch_size":                  o.BatchSize,
		"test_batch_size":             o.TestBatchSize,
		"optimizer":                   o.Optimizer,
		"optimizer_kwargs":            o.OptimizerKwargs,
		"lr_scheduler":                o.LRScheduler,
		"lr_scheduler_kwargs":         o.LRSchedulerKwargs,
		"loss_function":               o.LossFunction,
		"loss_function_kwargs":        o.LossFunctionKwargs,
		"negative_sampling_size":      o.NegativeSamplingSize,
		"use_node_type_aware_sampler": o.UseNodeTypeAwareSampler,
		"k_value":                     o.KValue,
		"do_validation":               o.DoValidation,
		"do_test":                     o.DoTest,
		"filtered_metrics":            o.FilteredMetrics,
		"epochs_per_val":              o.EpochsPerVal,
		"inner_norm":                  o.InnerNorm,
	}
	if c := o.LoadFromCheckpoint; c != nil {
		conf["load_from_checkpoint"] = []any{c.Name, c.Epoch}
	}
	if o.InitBound != nil {
		conf["init_bound"] = *o.InitBound
	}
	return conf
}
