// Copyright 2024 The Perfil Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package editor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perfil",
			Subsystem: "profileapi",
			Name:      "submissions_total",
			Help:      "Number of profile submissions, by outcome.",
		},
		[]string{"outcome"},
	)
	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perfil",
			Subsystem: "profileapi",
			Name:      "commits_total",
			Help:      "Number of confirmed commits, by outcome.",
		},
		[]string{"outcome"},
	)
	commitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "perfil",
			Subsystem: "profileapi",
			Name:      "commit_duration_seconds",
			Help:      "Time from confirmation until the commit was applied or abandoned.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 2.5, 5, 10, 30},
		},
	)
	avatarCapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perfil",
			Subsystem: "profileapi",
			Name:      "avatar_captures_total",
			Help:      "Number of avatar selections, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	screensMounted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perfil",
			Subsystem: "profileapi",
			Name:      "screens_mounted",
			Help:      "Number of profile screens currently mounted.",
		},
	)
)
