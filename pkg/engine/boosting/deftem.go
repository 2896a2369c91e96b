package boosting

const deftem = `
import json

import lightgbm as lgb
import numpy as np

################################################################################

data = np.loadtxt("{{ .Dat }}", delimiter=",", ndmin=2)

label = data[:, 0]
weight = data[:, 1]
features = data[:, 2:]

################################################################################

params = {
    "objective": "{{ .Obj }}",
    "num_class": {{ .Cla }},
    "learning_rate": {{ .Lrn }},
    "num_leaves": {{ .Lvs }},
    "min_data_per_group": {{ .Min }},
    "max_cat_threshold": {{ .Max }},
    "cat_smooth": {{ .Smo }},
    "cat_l2": {{ .Cl2 }},
    "lambda_l2": {{ .L2 }},
    "lambda_l1": {{ .L1 }},
    "seed": {{ .See }},
    "deterministic": True,
    "num_threads": 1,
    "verbosity": -1,
}

################################################################################

booster = lgb.train(
    params,
    lgb.Dataset(features, label=label, weight=weight),
    num_boost_round={{ .Rou }},
)

with open("{{ .Out }}", "w") as f:
    json.dump(booster.dump_model(), f)
`
